// Package hooks defines the interceptor pipeline the router runs every
// PUBLISH through, plus the connection-lifecycle hook interface.
package hooks

import "github.com/edgebroker/goqttd/internal/packet"

// MessageContext is the mutable publish context interceptors operate on.
// Drop() marks the message to be discarded without further processing.
type MessageContext struct {
	ClientID string
	Topic    string
	Payload  []byte
	QoS      packet.QoS
	Retain   bool

	dropped bool
}

// Drop marks the message as discarded; the router checks Dropped() after
// running the pipeline and returns without delivering or retaining.
func (m *MessageContext) Drop() { m.dropped = true }

// Dropped reports whether any interceptor called Drop.
func (m *MessageContext) Dropped() bool { return m.dropped }

// Interceptor is one stage of the publish pipeline, run in registration
// order. It may mutate the MessageContext in place.
type Interceptor func(*MessageContext)

// Hook is the connection-lifecycle callback surface. Every method is
// optional: a nil field in Hook is treated as a no-op / always-allow.
type Hook struct {
	// OnConnect runs after CONNECT validation and authentication, before
	// CONNACK is sent. Returning false rejects with CONNACK 0x05.
	OnConnect func(clientID, username string) bool

	// OnPublish runs after the interceptor pipeline for messages that
	// were not dropped; it cannot itself veto delivery.
	OnPublish func(clientID, topic string, payloadSize int)

	// OnSubscribe may override the granted QoS for a filter, or return
	// -1 (mapped to SUBACK 0x80) to refuse it outright.
	OnSubscribe func(clientID, filter string, requestedQoS packet.QoS) int

	OnUnsubscribe func(clientID, filter string)
	OnDisconnect  func(clientID string, graceful bool)

	// OnWillPublish runs before a will message is routed on ungraceful
	// disconnect; returning false suppresses it.
	OnWillPublish func(clientID, topic string) bool
}

// Pipeline runs a registered list of interceptors over ctx, stopping early
// once one of them calls Drop.
type Pipeline struct {
	interceptors []Interceptor
}

// NewPipeline builds a Pipeline that runs interceptors in the given order.
func NewPipeline(interceptors ...Interceptor) *Pipeline {
	return &Pipeline{interceptors: interceptors}
}

// Run applies every interceptor to ctx in registration order, stopping as
// soon as one marks the message dropped.
func (p *Pipeline) Run(ctx *MessageContext) {
	for _, fn := range p.interceptors {
		fn(ctx)
		if ctx.Dropped() {
			return
		}
	}
}
