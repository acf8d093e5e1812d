package server

import (
	"github.com/edgebroker/goqttd/internal/packet"
	"github.com/edgebroker/goqttd/internal/session"
)

// Deliver implements router.Sender: it frames a PUBLISH for s at the given
// effective QoS, allocating a packet id and recording outbound inflight
// state for QoS>=1. If no packet id is free, the message is pushed onto the
// session's offline/overflow queue per §4.4's full-inflight-table rule.
func (b *Broker) Deliver(s *session.Session, topicName string, payload []byte, qos packet.QoS, retain bool) error {
	if qos == packet.QoS0 {
		return b.write(s, &packet.Publish{QoS: packet.QoS0, Topic: topicName, Payload: payload, Retain: retain})
	}

	id, err := s.AllocatePacketID()
	if err != nil {
		s.EnqueueOffline(session.PendingMessage{Topic: topicName, Payload: payload, QoS: qos, Retain: retain})
		return nil
	}

	state := session.AwaitPuback
	if qos == packet.QoS2 {
		state = session.AwaitPubrec
	}
	s.BeginOutflight(id, topicName, payload, qos, retain, state)

	return b.write(s, &packet.Publish{QoS: qos, Topic: topicName, Payload: payload, Retain: retain, PacketID: id})
}

func (b *Broker) write(s *session.Session, p *packet.Publish) error {
	conn := s.Connection()
	if conn == nil {
		return nil
	}
	n, err := conn.Write(p.Encode())
	if err == nil {
		b.Stats.MessagesSent.Add(1)
		b.Stats.PublishSent.Add(1)
		b.Stats.BytesSent.Add(int64(n))
	}
	return err
}

// resend retransmits an entry flagged due for retry by DueForRetry: a
// PUBLISH with DUP=1 while AwaitPuback/AwaitPubrec, or a bare PUBREL while
// AwaitPubcomp (PUBREL carries no DUP flag).
func (b *Broker) resend(s *session.Session, e *session.OutflightEntry) {
	conn := s.Connection()
	if conn == nil {
		return
	}
	switch e.State {
	case session.AwaitPubcomp:
		conn.Write((&packet.PubRel{PacketID: e.PacketID}).Encode())
	default:
		p := &packet.Publish{Dup: true, QoS: e.QoS, Topic: e.Topic, Payload: e.Payload, Retain: e.Retain, PacketID: e.PacketID}
		conn.Write(p.Encode())
	}
}
