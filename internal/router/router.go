// Package router implements the fan-out engine: interceptor pipeline,
// retained-store update, topic tree lookup, and delivery through each
// recipient's QoS engine. Recipients are not authorized here; the
// connection handler checks publish and subscribe authorization through
// AuthorizePublish and AuthorizeSubscribe. Grounded on
// Pyr33x-goqtt's internal/broker/broker.go HandlePublish/HandleSubscribe
// flow (which this package replaces with a working topic tree and
// auth/hook integration).
package router

import (
	"github.com/edgebroker/goqttd/internal/auth"
	"github.com/edgebroker/goqttd/internal/hooks"
	"github.com/edgebroker/goqttd/internal/logger"
	"github.com/edgebroker/goqttd/internal/packet"
	"github.com/edgebroker/goqttd/internal/session"
	"github.com/edgebroker/goqttd/internal/topic"
)

// Sender delivers a fully-framed PUBLISH to one session, handling the
// QoS-specific inflight bookkeeping. The broker core (server.Broker)
// implements this; it is the only way the router writes to a socket.
type Sender interface {
	Deliver(s *session.Session, topicName string, payload []byte, qos packet.QoS, retain bool) error
}

// Router wires the topic tree, session store, auth provider and hook
// pipeline together to implement route().
type Router struct {
	Topic    *topic.Tree
	Sessions *session.Store
	Auth     auth.Provider
	Hook     hooks.Hook
	Pipeline *hooks.Pipeline
	Sender   Sender
	Log      *logger.Logger

	retainEnabled bool
	qos2Enabled   bool
}

// New constructs a Router with an empty interceptor pipeline. The Pipeline
// field may be replaced afterwards, or set to nil, which Route skips.
func New(t *topic.Tree, st *session.Store, provider auth.Provider, hook hooks.Hook, sender Sender, log *logger.Logger, retainEnabled, qos2Enabled bool) *Router {
	return &Router{
		Topic:         t,
		Sessions:      st,
		Auth:          provider,
		Hook:          hook,
		Pipeline:      hooks.NewPipeline(),
		Sender:        sender,
		Log:           log,
		retainEnabled: retainEnabled,
		qos2Enabled:   qos2Enabled,
	}
}

// Route implements spec §4.5: interceptor pipeline, retained update, topic
// match, per-subscriber delivery (with offline queueing), and runs
// OnPublish for messages that survive the pipeline.
func (r *Router) Route(senderID, topicName string, payload []byte, qos packet.QoS, retain bool) {
	if !r.qos2Enabled && qos == packet.QoS2 {
		qos = packet.QoS1
	}

	ctx := &hooks.MessageContext{ClientID: senderID, Topic: topicName, Payload: payload, QoS: qos, Retain: retain}
	if r.Pipeline != nil {
		r.Pipeline.Run(ctx)
	}
	if ctx.Dropped() {
		return
	}

	if ctx.Retain && r.retainEnabled {
		r.Topic.SetRetained(ctx.Topic, ctx.Payload, ctx.QoS)
	}

	subscribers := r.Topic.Match(ctx.Topic)
	for clientID, granted := range subscribers {
		r.deliverTo(clientID, ctx.Topic, ctx.Payload, ctx.QoS, granted)
	}

	if r.Hook.OnPublish != nil {
		r.Hook.OnPublish(senderID, ctx.Topic, len(ctx.Payload))
	}
}

func (r *Router) deliverTo(clientID, topicName string, payload []byte, publishQoS, grantedQoS packet.QoS) {
	s, ok := r.Sessions.Get(clientID)
	if !ok {
		return
	}
	effective := session.EffectiveQoS(publishQoS, grantedQoS)

	if s.Online() {
		if err := r.Sender.Deliver(s, topicName, payload, effective, false); err != nil && r.Log != nil {
			r.Log.Error("failed to deliver message", logger.ClientID(clientID), logger.ErrorAttr(err))
		}
		return
	}

	if effective == packet.QoS0 || s.CleanSession {
		return
	}
	s.EnqueueOffline(session.PendingMessage{Topic: topicName, Payload: payload, QoS: effective, Retain: false})
}

// DeliverRetained sends every retained message matching filter to a newly
// subscribed session, at min(retained.qos, grantedQoS), with retain=true.
func (r *Router) DeliverRetained(s *session.Session, filter string, grantedQoS packet.QoS) {
	if !r.retainEnabled {
		return
	}
	for _, ret := range r.Topic.MatchingRetained(filter) {
		effective := session.EffectiveQoS(ret.QoS, grantedQoS)
		if s.Online() {
			_ = r.Sender.Deliver(s, ret.Topic, ret.Payload, effective, true)
		} else if effective != packet.QoS0 && !s.CleanSession {
			s.EnqueueOffline(session.PendingMessage{Topic: ret.Topic, Payload: ret.Payload, QoS: effective, Retain: true})
		}
	}
}

// AuthorizePublish checks whether senderID may publish to topicName.
func (r *Router) AuthorizePublish(senderID, topicName string) bool {
	return r.Auth.AuthorizePublish(senderID, topicName)
}

// AuthorizeSubscribe checks whether senderID may subscribe to filter,
// returning the granted QoS or auth.SubscribeDenied.
func (r *Router) AuthorizeSubscribe(senderID, filter string) int {
	return r.Auth.AuthorizeSubscribe(senderID, filter)
}
