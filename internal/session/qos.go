package session

import (
	"time"

	"github.com/edgebroker/goqttd/internal/packet"
	"github.com/edgebroker/goqttd/internal/xerror"
)

// AllocatePacketID returns the next free packet id for outbound inflight,
// skipping ids already in use, wrapping 1..65535 (0 is reserved). It returns
// xerror.ErrPacketIDSpaceFull if max_inflight outbound messages are already
// in flight.
func (s *Session) AllocatePacketID() (uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.maxInflight > 0 && len(s.inflightOut) >= s.maxInflight {
		return 0, &xerror.Err{Context: "qos engine allocate packet id", Message: xerror.ErrPacketIDSpaceFull}
	}
	for i := 0; i < 65535; i++ {
		id := s.nextPacketID
		s.nextPacketID++
		if s.nextPacketID == 0 {
			s.nextPacketID = 1
		}
		if _, inUse := s.inflightOut[id]; !inUse {
			return id, nil
		}
	}
	return 0, &xerror.Err{Context: "qos engine allocate packet id", Message: xerror.ErrPacketIDSpaceFull}
}

// BeginOutflight records a newly sent outbound QoS>=1 message.
func (s *Session) BeginOutflight(id uint16, topic string, payload []byte, qos packet.QoS, retain bool, state OutState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflightOut[id] = &OutflightEntry{
		PacketID:   id,
		Topic:      topic,
		Payload:    payload,
		QoS:        qos,
		Retain:     retain,
		State:      state,
		LastSentAt: time.Now(),
		Attempts:   1,
	}
	s.inflightOutAge = append(s.inflightOutAge, id)
}

// Outflight returns the entry for a packet id inflight outbound, if any.
func (s *Session) Outflight(id uint16) (*OutflightEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.inflightOut[id]
	return e, ok
}

// AdvanceOutflight transitions an inflight entry to a new state (e.g. on
// PUBREC, AwaitPubrec -> AwaitPubcomp).
func (s *Session) AdvanceOutflight(id uint16, state OutState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.inflightOut[id]; ok {
		e.State = state
		e.LastSentAt = time.Now()
		e.Attempts = 1
	}
}

// CompleteOutflight removes a finished outbound entry (on PUBACK/PUBCOMP),
// freeing its packet id for reuse.
func (s *Session) CompleteOutflight(id uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflightOut, id)
	for i, pid := range s.inflightOutAge {
		if pid == id {
			s.inflightOutAge = append(s.inflightOutAge[:i], s.inflightOutAge[i+1:]...)
			break
		}
	}
}

// DueForRetry returns outbound entries whose last send is older than
// interval, for the broker's retry scanner. Entries whose attempts exceed
// maxRetries are dropped and returned separately so the caller can log them.
func (s *Session) DueForRetry(interval time.Duration, maxRetries int) (retry []*OutflightEntry, dropped []*OutflightEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for _, id := range append([]uint16(nil), s.inflightOutAge...) {
		e, ok := s.inflightOut[id]
		if !ok {
			continue
		}
		if now.Sub(e.LastSentAt) < interval {
			continue
		}
		if e.Attempts > maxRetries {
			delete(s.inflightOut, id)
			dropped = append(dropped, e)
			continue
		}
		e.Attempts++
		e.LastSentAt = now
		retry = append(retry, e)
	}
	if len(dropped) > 0 {
		remaining := s.inflightOutAge[:0]
		for _, id := range s.inflightOutAge {
			if _, ok := s.inflightOut[id]; ok {
				remaining = append(remaining, id)
			}
		}
		s.inflightOutAge = remaining
	}
	return retry, dropped
}

// InboundQoS2Seen reports whether packetID is already tracked as inflight
// inbound (a duplicate QoS 2 PUBLISH), and records it if not.
func (s *Session) InboundQoS2Seen(packetID uint16) (alreadySeen bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inflightIn[packetID]; ok {
		return true
	}
	s.inflightIn[packetID] = struct{}{}
	return false
}

// ReleaseInboundQoS2 forgets packetID on PUBREL, even if it was never
// recorded (a lost-state PUBREL must still be answered with PUBCOMP).
func (s *Session) ReleaseInboundQoS2(packetID uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflightIn, packetID)
}

// EnqueueOffline pushes a message onto the bounded offline queue, dropping
// the oldest entry when full. QoS 0 messages must never be queued; callers
// enforce that before calling this.
func (s *Session) EnqueueOffline(m PendingMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.maxQueued > 0 && len(s.offlineQueue) >= s.maxQueued {
		s.offlineQueue = s.offlineQueue[1:]
	}
	s.offlineQueue = append(s.offlineQueue, m)
}

// DrainOffline removes and returns every queued message, in FIFO order, for
// delivery once the session reconnects.
func (s *Session) DrainOffline() []PendingMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.offlineQueue
	s.offlineQueue = nil
	return out
}

// EffectiveQoS is min(publishQoS, grantedQoS), the delivery QoS rule.
func EffectiveQoS(publishQoS, grantedQoS packet.QoS) packet.QoS {
	if publishQoS < grantedQoS {
		return publishQoS
	}
	return grantedQoS
}
