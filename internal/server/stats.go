package server

import (
	"context"
	"runtime"
	"strconv"
	"time"

	"github.com/edgebroker/goqttd/internal/packet"
)

// statsPublisher republishes the $SYS/* tree as retained QoS0 messages every
// stats_interval, grounded on spec §4.8's fixed topic list.
func (b *Broker) statsPublisher(ctx context.Context) {
	ticker := time.NewTicker(b.Cfg.StatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.publishStats()
		}
	}
}

func (b *Broker) publishStats() {
	uptime := time.Since(b.startedAt) / time.Second

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	sys := map[string]string{
		"$SYS/broker/version":                Version,
		"$SYS/broker/uptime":                 strconv.FormatInt(int64(uptime), 10) + " seconds",
		"$SYS/broker/clients/connected":      strconv.Itoa(b.Store.OnlineCount()),
		"$SYS/broker/clients/total":          strconv.FormatInt(b.Stats.ClientsTotal.Load(), 10),
		"$SYS/broker/messages/received":      strconv.FormatInt(b.Stats.MessagesReceived.Load(), 10),
		"$SYS/broker/messages/sent":          strconv.FormatInt(b.Stats.MessagesSent.Load(), 10),
		"$SYS/broker/messages/publish/received": strconv.FormatInt(b.Stats.PublishReceived.Load(), 10),
		"$SYS/broker/messages/publish/sent":  strconv.FormatInt(b.Stats.PublishSent.Load(), 10),
		"$SYS/broker/bytes/received":         strconv.FormatInt(b.Stats.BytesReceived.Load(), 10),
		"$SYS/broker/bytes/sent":             strconv.FormatInt(b.Stats.BytesSent.Load(), 10),
		"$SYS/broker/subscriptions/count":    strconv.Itoa(b.Topic.SubscriptionCount()),
		"$SYS/broker/messages/retained/count": strconv.Itoa(b.Topic.RetainedCount()),
		"$SYS/broker/load/connections":       strconv.Itoa(b.Store.Count()),
		"$SYS/broker/heap/free":              strconv.FormatUint(m.HeapIdle, 10),
		"$SYS/broker/heap/used":              strconv.FormatUint(m.HeapInuse, 10),
	}

	for topicName, payload := range sys {
		b.Router.Route("$SYS", topicName, []byte(payload), packet.QoS0, true)
	}
}
