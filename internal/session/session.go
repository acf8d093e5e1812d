// Package session implements the per-client session record and the QoS 1/2
// state machines, grounded on Pyr33x-goqtt's internal/broker/session.go
// (session map shape) and internal/broker/qos.go (QoS manager structure).
package session

import (
	"sync"
	"time"

	"github.com/edgebroker/goqttd/internal/packet"
)

// OutState is the state of an outbound QoS>=1 message awaiting acknowledgment.
type OutState int

const (
	AwaitPuback OutState = iota
	AwaitPubrec
	AwaitPubcomp
)

// OutflightEntry is one outbound message inflight for a session.
type OutflightEntry struct {
	PacketID   uint16
	Topic      string
	Payload    []byte
	QoS        packet.QoS
	Retain     bool
	State      OutState
	LastSentAt time.Time
	Attempts   int
}

// Will is the session's last-will publication, set at CONNECT time.
type Will struct {
	Topic   string
	Payload []byte
	QoS     packet.QoS
	Retain  bool
}

// PendingMessage sits in a session's offline queue until the client
// reconnects.
type PendingMessage struct {
	Topic   string
	Payload []byte
	QoS     packet.QoS
	Retain  bool
}

// Conn is the minimal surface the session needs from a connection handle;
// satisfied by net.Conn and by test doubles.
type Conn interface {
	Write(b []byte) (int, error)
	Close() error
}

// Session is the per-client-identifier record described by the broker's
// data model: subscriptions, inflight tables, offline queue, and the
// connection handle when online.
type Session struct {
	mu sync.Mutex

	ClientID     string
	CleanSession bool

	Subscriptions map[string]packet.QoS

	inflightOut    map[uint16]*OutflightEntry
	inflightOutAge []uint16 // insertion order, for ordered-map semantics
	inflightIn     map[uint16]struct{}

	offlineQueue    []PendingMessage
	maxQueued       int
	maxInflight     int
	nextPacketID    uint16

	Will *Will

	KeepAliveSeconds uint16
	LastActivityAt   time.Time

	connection      Conn
	remoteAddr      string
	DisconnectedAt  *time.Time
}

// NewSession constructs an empty session for clientID.
func NewSession(clientID string, cleanSession bool, maxQueued, maxInflight int) *Session {
	return &Session{
		ClientID:      clientID,
		CleanSession:  cleanSession,
		Subscriptions: make(map[string]packet.QoS),
		inflightOut:   make(map[uint16]*OutflightEntry),
		inflightIn:    make(map[uint16]struct{}),
		maxQueued:     maxQueued,
		maxInflight:   maxInflight,
		nextPacketID:  1,
		LastActivityAt: time.Now(),
	}
}

// Attach binds a live connection to the session (on CONNECT / takeover).
func (s *Session) Attach(c Conn, remoteAddr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connection = c
	s.remoteAddr = remoteAddr
	s.DisconnectedAt = nil
	s.LastActivityAt = time.Now()
}

// Detach clears the connection handle, recording the moment for expiry.
func (s *Session) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connection = nil
	now := time.Now()
	s.DisconnectedAt = &now
}

// Online reports whether a connection handle is currently attached.
func (s *Session) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connection != nil
}

// Connection returns the currently attached connection, or nil if offline.
func (s *Session) Connection() Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connection
}

// RemoteAddr returns the peer address recorded at Attach, for logging.
func (s *Session) RemoteAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remoteAddr
}

// Touch updates last_activity_at, called on every inbound packet.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastActivityAt = time.Now()
}

// IdleFor reports how long it has been since the last inbound packet.
func (s *Session) IdleFor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.LastActivityAt)
}

// AddSubscription records a granted subscription, for session_present
// bookkeeping and management snapshots; the authoritative copy lives in the
// topic tree.
func (s *Session) AddSubscription(filter string, qos packet.QoS) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Subscriptions[filter] = qos
}

// RemoveSubscription forgets a filter on UNSUBSCRIBE.
func (s *Session) RemoveSubscription(filter string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Subscriptions, filter)
}

// SubscriptionSnapshot returns a copy of the session's subscription set,
// for management queries.
func (s *Session) SubscriptionSnapshot() map[string]packet.QoS {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]packet.QoS, len(s.Subscriptions))
	for f, q := range s.Subscriptions {
		out[f] = q
	}
	return out
}

// filterList returns the session's currently subscribed filters, for the
// store to unsubscribe from the topic tree when a session record is
// discarded outright (clean-session detach, expiry).
func (s *Session) filterList() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterListLocked()
}

func (s *Session) filterListLocked() []string {
	filters := make([]string, 0, len(s.Subscriptions))
	for f := range s.Subscriptions {
		filters = append(filters, f)
	}
	return filters
}

// ResetForCleanSession discards subscriptions, queues and inflight state;
// called by the store on takeover when the new CONNECT has clean_session=true.
// It returns the filters the session held so the caller can remove them from
// the topic tree — this clears only the session's own bookkeeping.
func (s *Session) ResetForCleanSession() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	filters := s.filterListLocked()
	s.Subscriptions = make(map[string]packet.QoS)
	s.inflightOut = make(map[uint16]*OutflightEntry)
	s.inflightOutAge = nil
	s.inflightIn = make(map[uint16]struct{})
	s.offlineQueue = nil
	s.nextPacketID = 1
	s.Will = nil
	return filters
}
