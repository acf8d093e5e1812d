// Package server implements the broker core: the TCP acceptor loop and the
// background tasks (retry, keep-alive, session expiry, stats, memory
// scanner), grounded on Pyr33x-goqtt's internal/transport/tcp.go accept
// loop and graceful-shutdown pattern from cmd/goqtt/main.go.
package server

import (
	"context"
	"fmt"
	"net"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/edgebroker/goqttd/internal/auth"
	"github.com/edgebroker/goqttd/internal/config"
	"github.com/edgebroker/goqttd/internal/hooks"
	"github.com/edgebroker/goqttd/internal/logger"
	"github.com/edgebroker/goqttd/internal/packet"
	"github.com/edgebroker/goqttd/internal/router"
	"github.com/edgebroker/goqttd/internal/session"
	"github.com/edgebroker/goqttd/internal/topic"
)

// Version is the broker's reported $SYS/broker/version value.
const Version = "goqttd/1.0"

// Stats accumulates the global counters published under $SYS/*.
type Stats struct {
	MessagesReceived        atomic.Int64
	MessagesSent             atomic.Int64
	PublishReceived          atomic.Int64
	PublishSent              atomic.Int64
	BytesReceived            atomic.Int64
	BytesSent                atomic.Int64
	ClientsTotal             atomic.Int64
}

// Broker owns the listening socket, the session store, the topic tree, the
// router and every background task listed in spec §4.7.
type Broker struct {
	Cfg    *config.Config
	Log    *logger.Logger
	Topic  *topic.Tree
	Store  *session.Store
	Auth   auth.Provider
	Hook   hooks.Hook
	Router *router.Router
	Stats  Stats

	listener  net.Listener
	startedAt time.Time

	connWG sync.WaitGroup
	cancel context.CancelFunc

	lowMemory atomic.Bool
}

// New wires a Broker from its configuration and collaborators. If provider
// is nil, AllowAll is used; nil fields of hook are skipped.
func New(cfg *config.Config, log *logger.Logger, provider auth.Provider, hook hooks.Hook) *Broker {
	if provider == nil {
		provider = auth.AllowAll{}
	}
	t := topic.New(cfg.MaxSubscriptionsPerClient, cfg.MaxRetainedMessages)
	st := session.NewStore(t, cfg.MaxQueuedMessages, cfg.MaxInflight)

	b := &Broker{
		Cfg:   cfg,
		Log:   log,
		Topic: t,
		Store: st,
		Auth:  provider,
		Hook:  hook,
	}
	b.Router = router.New(t, st, provider, hook, b, log, cfg.RetainEnabled, cfg.QoS2Enabled)
	return b
}

// Start opens the listening socket and launches the accept loop and every
// background task. It returns once the listener is open; shutdown happens
// when ctx is cancelled.
func (b *Broker) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", b.Cfg.BindAddr, b.Cfg.Port)
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	b.listener = ln
	b.startedAt = time.Now()

	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel

	go b.acceptLoop(runCtx)
	go b.retryScanner(runCtx)
	go b.keepAliveScanner(runCtx)
	go b.sessionExpiryScanner(runCtx)
	if b.Cfg.SysTopicsEnabled {
		go b.statsPublisher(runCtx)
	}
	go b.memoryScanner(runCtx)

	return nil
}

// Stop closes the listener and cancels every background task, then waits
// for in-flight connection handlers to exit. In-flight QoS state is lost,
// consistent with the broker carrying no persisted state.
func (b *Broker) Stop() error {
	if b.cancel != nil {
		b.cancel()
	}
	var err error
	if b.listener != nil {
		err = b.listener.Close()
	}
	b.connWG.Wait()
	return err
}

func (b *Broker) acceptLoop(ctx context.Context) {
	for {
		conn, err := b.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				if b.Log != nil {
					b.Log.Error("accept error", logger.ErrorAttr(err))
				}
				continue
			}
		}

		if b.Store.Count() >= b.Cfg.MaxClients || b.lowMemory.Load() {
			b.rejectOverCapacity(conn)
			continue
		}

		b.Stats.ClientsTotal.Add(1)
		b.connWG.Add(1)
		go func() {
			defer b.connWG.Done()
			newConnection(b, conn).run(ctx)
		}()
	}
}

func (b *Broker) rejectOverCapacity(conn net.Conn) {
	defer conn.Close()
	ack := &packet.Connack{ReturnCode: packet.ConnectRefusedServerUnavailable}
	conn.Write(ack.Encode())
}

// retryScanner walks outbound inflight across every session every
// qos_retry_interval, retransmitting or dropping per §4.4.
func (b *Broker) retryScanner(ctx context.Context) {
	ticker := time.NewTicker(b.Cfg.QoSRetryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, s := range b.Store.All() {
				retry, dropped := s.DueForRetry(b.Cfg.QoSRetryInterval, b.Cfg.QoSMaxRetries)
				for _, e := range retry {
					b.resend(s, e)
					if b.Log != nil {
						b.Log.LogRetry(s.ClientID, e.PacketID, e.Attempts, false)
					}
				}
				for _, e := range dropped {
					if b.Log != nil {
						b.Log.LogRetry(s.ClientID, e.PacketID, e.Attempts, true)
					}
				}
			}
		}
	}
}

// keepAliveScanner terminates connections past their deadline, every
// second: fine enough granularity relative to keep_alive_seconds (typically
// tens of seconds) without busy-looping.
func (b *Broker) keepAliveScanner(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, s := range b.Store.All() {
				if !s.Online() {
					continue
				}
				deadline := b.keepAliveDeadline(s.KeepAliveSeconds)
				if s.IdleFor() > deadline {
					if conn := s.Connection(); conn != nil {
						conn.Close()
					}
				}
			}
		}
	}
}

func (b *Broker) keepAliveDeadline(keepAliveSeconds uint16) time.Duration {
	if keepAliveSeconds == 0 {
		return b.Cfg.NoKeepaliveTimeout
	}
	return time.Duration(float64(keepAliveSeconds) * b.Cfg.KeepAliveFactor * float64(time.Second))
}

// sessionExpiryScanner invokes expire_offline every 60 seconds.
func (b *Broker) sessionExpiryScanner(ctx context.Context) {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired := b.Store.ExpireOffline(time.Now(), b.Cfg.SessionExpiry)
			for _, clientID := range expired {
				if b.Log != nil {
					b.Log.LogSessionExpiry(clientID)
				}
			}
		}
	}
}

// memoryScanner is platform-conditional: on a build without the
// runtime.MemStats-based signal it would be a no-op, but the Go runtime
// always exposes heap statistics, so it simply feeds the low-memory gate
// used to refuse new connections under pressure.
func (b *Broker) memoryScanner(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			// Below ~16MiB free from the Go heap's perspective, start
			// refusing new connections rather than risk an OOM kill.
			const lowMemThreshold = 16 << 20
			low := m.HeapSys-m.HeapInuse < lowMemThreshold
			b.lowMemory.Store(low)
			if low {
				b.Topic.EvictOldestRetained(b.Cfg.MaxRetainedMessages / 10)
			}
		}
	}
}
