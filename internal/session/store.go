package session

import (
	"maps"
	"sync"
	"sync/atomic"
	"time"
)

type sessionMap map[string]*Session

// Unsubscriber removes one client's filter from the routing layer. The
// topic tree implements this; the store only depends on this narrow slice
// of it so that discarding a session's state (clean-session takeover,
// disconnect, expiry) can also reconcile the tree, without importing the
// whole topic package for its own sake.
type Unsubscriber interface {
	Unsubscribe(filter, clientID string)
}

// Store is the broker-wide client-identifier -> Session mapping, grounded
// on Pyr33x-goqtt's atomic.Value copy-on-write session map in
// internal/broker/session.go. Reads never block writers and vice versa;
// writers serialize via mu.
type Store struct {
	sessions atomic.Value // sessionMap
	mu       sync.Mutex

	topic       Unsubscriber
	maxQueued   int
	maxInflight int
}

// NewStore constructs an empty session store. topic is used to remove a
// client's filters from the routing tree whenever its session state is
// discarded (clean-session takeover, ordinary disconnect, expiry); it may
// be nil, in which case the tree is left untouched (tests that don't care
// about routing state). maxQueued/maxInflight are the max_queued_messages /
// max_inflight config bounds applied to every session it creates.
func NewStore(topic Unsubscriber, maxQueued, maxInflight int) *Store {
	st := &Store{topic: topic, maxQueued: maxQueued, maxInflight: maxInflight}
	st.sessions.Store(make(sessionMap))
	return st
}

// unsubscribeAll removes every one of clientID's filters from the topic
// tree, a no-op if no tree was configured.
func (st *Store) unsubscribeAll(clientID string, filters []string) {
	if st.topic == nil {
		return
	}
	for _, filter := range filters {
		st.topic.Unsubscribe(filter, clientID)
	}
}

// Get returns the session for clientID, if one exists.
func (st *Store) Get(clientID string) (*Session, bool) {
	current := st.sessions.Load().(sessionMap)
	s, ok := current[clientID]
	return s, ok
}

// Count returns the number of sessions currently tracked, online or
// offline, for the max_clients and $SYS stats checks.
func (st *Store) Count() int {
	current := st.sessions.Load().(sessionMap)
	return len(current)
}

// OnlineCount returns the number of sessions with an attached connection.
func (st *Store) OnlineCount() int {
	current := st.sessions.Load().(sessionMap)
	n := 0
	for _, s := range current {
		if s.Online() {
			n++
		}
	}
	return n
}

func (st *Store) store(clientID string, s *Session) {
	current := st.sessions.Load().(sessionMap)
	updated := make(sessionMap, len(current)+1)
	maps.Copy(updated, current)
	updated[clientID] = s
	st.sessions.Store(updated)
}

func (st *Store) delete(clientID string) {
	current := st.sessions.Load().(sessionMap)
	if _, ok := current[clientID]; !ok {
		return
	}
	updated := make(sessionMap, len(current))
	maps.Copy(updated, current)
	delete(updated, clientID)
	st.sessions.Store(updated)
}

// CreateOrTakeover implements the invariant "at most one ConnectionHandle
// per client identifier": if a session with clientID is already online its
// prior connection is returned (for the caller to close without publishing
// a will) alongside the (possibly reused) session. sessionPresent reports
// whether the caller should set CONNACK's session-present bit.
func (st *Store) CreateOrTakeover(clientID string, cleanSession bool) (s *Session, previousConn Conn, sessionPresent bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	existing, ok := st.Get(clientID)
	if !ok {
		s := NewSession(clientID, cleanSession, st.maxQueued, st.maxInflight)
		st.store(clientID, s)
		return s, nil, false
	}

	if existing.Online() {
		previousConn = existing.Connection()
	}

	if cleanSession {
		filters := existing.ResetForCleanSession()
		st.unsubscribeAll(clientID, filters)
		existing.CleanSession = true
		return existing, previousConn, false
	}

	existing.CleanSession = false
	return existing, previousConn, true
}

// Detach implements the non-graceful/graceful disconnect path: if the
// session is clean, it is deleted outright (after removing its filters from
// the topic tree, since no later reconnect can clean those up once the
// record is gone); otherwise its connection handle is dropped and
// disconnected_at is recorded for expiry.
func (st *Store) Detach(clientID string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.Get(clientID)
	if !ok {
		return
	}
	if s.CleanSession {
		st.unsubscribeAll(clientID, s.filterList())
		st.delete(clientID)
		return
	}
	s.Detach()
}

// ExpireOffline deletes every offline session whose disconnected_at +
// sessionExpiry is before now, returning the expired client identifiers so
// the caller can log them.
func (st *Store) ExpireOffline(now time.Time, sessionExpiry time.Duration) []string {
	st.mu.Lock()
	defer st.mu.Unlock()

	current := st.sessions.Load().(sessionMap)
	var expired []string
	for clientID, s := range current {
		if s.Online() {
			continue
		}
		s.mu.Lock()
		disconnectedAt := s.DisconnectedAt
		s.mu.Unlock()
		if disconnectedAt != nil && now.Sub(*disconnectedAt) >= sessionExpiry {
			expired = append(expired, clientID)
		}
	}
	for _, clientID := range expired {
		st.unsubscribeAll(clientID, current[clientID].filterList())
		st.delete(clientID)
	}
	return expired
}

// All returns a snapshot of every session, for management queries and
// background scanners.
func (st *Store) All() []*Session {
	current := st.sessions.Load().(sessionMap)
	out := make([]*Session, 0, len(current))
	for _, s := range current {
		out = append(out, s)
	}
	return out
}
