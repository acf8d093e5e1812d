// Package management implements the broker's read-only snapshot queries and
// operator commands (clear retained, force-disconnect), grounded on
// spec §6's management-query list and layered over internal/server's
// existing Broker fields rather than a separate subsystem.
package management

import (
	"github.com/edgebroker/goqttd/internal/packet"
	"github.com/edgebroker/goqttd/internal/server"
)

// ClientInfo is a read-only snapshot of one connected or persisted session.
type ClientInfo struct {
	ClientID      string
	Online        bool
	RemoteAddr    string
	CleanSession  bool
	Subscriptions map[string]packet.QoS
}

// Stats is a snapshot of the broker's aggregate counters.
type Stats struct {
	ClientsConnected int
	ClientsTotal     int64
	MessagesReceived int64
	MessagesSent     int64
	PublishReceived  int64
	PublishSent      int64
	BytesReceived    int64
	BytesSent        int64
	Subscriptions    int
	RetainedMessages int
}

// RetainedMessage is one entry in a retained-message dump.
type RetainedMessage struct {
	Topic   string
	Payload []byte
	QoS     packet.QoS
}

// Console is the read-only/command surface over a running Broker, intended
// for an operator CLI or HTTP admin endpoint (neither of which this package
// implements itself).
type Console struct {
	b *server.Broker
}

// New wraps b for management queries and commands.
func New(b *server.Broker) *Console {
	return &Console{b: b}
}

// Clients returns a snapshot of every tracked session, online or offline.
func (c *Console) Clients() []ClientInfo {
	sessions := c.b.Store.All()
	out := make([]ClientInfo, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, ClientInfo{
			ClientID:      s.ClientID,
			Online:        s.Online(),
			RemoteAddr:    s.RemoteAddr(),
			CleanSession:  s.CleanSession,
			Subscriptions: s.SubscriptionSnapshot(),
		})
	}
	return out
}

// Stats returns a snapshot of the broker's aggregate counters.
func (c *Console) Stats() Stats {
	return Stats{
		ClientsConnected: c.b.Store.OnlineCount(),
		ClientsTotal:     c.b.Stats.ClientsTotal.Load(),
		MessagesReceived: c.b.Stats.MessagesReceived.Load(),
		MessagesSent:     c.b.Stats.MessagesSent.Load(),
		PublishReceived:  c.b.Stats.PublishReceived.Load(),
		PublishSent:      c.b.Stats.PublishSent.Load(),
		BytesReceived:    c.b.Stats.BytesReceived.Load(),
		BytesSent:        c.b.Stats.BytesSent.Load(),
		Subscriptions:    c.b.Topic.SubscriptionCount(),
		RetainedMessages: c.b.Topic.RetainedCount(),
	}
}

// RetainedDump returns every retained message matching filter. "#" returns
// every topic whose first level does not begin with '$'; '$'-prefixed
// topics need a filter naming their first level, such as "$SYS/#".
func (c *Console) RetainedDump(filter string) []RetainedMessage {
	matches := c.b.Topic.MatchingRetained(filter)
	out := make([]RetainedMessage, 0, len(matches))
	for _, r := range matches {
		out = append(out, RetainedMessage{Topic: r.Topic, Payload: r.Payload, QoS: r.QoS})
	}
	return out
}

// ClearRetained deletes the retained message at topic, if any.
func (c *Console) ClearRetained(topicName string) {
	c.b.Topic.SetRetained(topicName, nil, packet.QoS0)
}

// DisconnectClient forcibly closes clientID's live connection, if online.
// This triggers the same will-publication and detach path as any other
// ungraceful close.
func (c *Console) DisconnectClient(clientID string) bool {
	s, ok := c.b.Store.Get(clientID)
	if !ok || !s.Online() {
		return false
	}
	conn := s.Connection()
	if conn == nil {
		return false
	}
	conn.Close()
	return true
}
