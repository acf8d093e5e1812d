package server

import (
	"bufio"
	"context"
	"errors"
	"net"
	"time"

	"github.com/edgebroker/goqttd/internal/logger"
	"github.com/edgebroker/goqttd/internal/packet"
	"github.com/edgebroker/goqttd/internal/session"
	"github.com/edgebroker/goqttd/internal/xerror"
	"github.com/google/uuid"
)

// state is the per-connection lifecycle described in spec §4.6: only
// Connected sessions are reachable by the router.
type state int

const (
	awaitConnect state = iota
	connected
	disconnecting
	closed
)

// connection is the per-socket handler: reads framed packets, dispatches by
// type, enforces keep-alive, and publishes the will on ungraceful close.
// Grounded on Pyr33x-goqtt's internal/transport/tcp.go handleConnection,
// generalized from its CONNECT-only switch into the full packet set.
type connection struct {
	b       *Broker
	conn    net.Conn
	session *session.Session
	state   state
}

func newConnection(b *Broker, conn net.Conn) *connection {
	return &connection{b: b, conn: conn, state: awaitConnect}
}

func (c *connection) run(ctx context.Context) {
	defer c.conn.Close()

	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 0, c.b.Cfg.RecvBufferSize), c.b.Cfg.MaxPacketSize)
	scanner.Split(packet.ScanPacket(c.b.Cfg.MaxPacketSize))

	c.conn.SetReadDeadline(time.Now().Add(c.b.Cfg.ConnectTimeout))
	if !scanner.Scan() {
		return
	}
	c.conn.SetReadDeadline(time.Time{})

	first, err := packet.Decode(scanner.Bytes())
	if err != nil || first.Type != packet.CONNECT {
		c.refuseHandshake(err)
		return
	}
	if !c.handshake(first.Connect) {
		return
	}
	c.state = connected
	defer c.teardown()

	for scanner.Scan() {
		if c.state != connected {
			break
		}
		c.session.Touch()
		frame := scanner.Bytes()
		c.b.Stats.MessagesReceived.Add(1)
		c.b.Stats.BytesReceived.Add(int64(len(frame)))

		p, err := packet.Decode(frame)
		if err != nil {
			return
		}
		if !c.dispatch(p) {
			return
		}
	}
}

// refuseHandshake sends a CONNACK refusal when the decode error maps to a
// defined wire return code; any other pre-CONNACK failure just closes.
func (c *connection) refuseHandshake(err error) {
	code, ok := refusalCode(err)
	if !ok {
		return
	}
	ack := &packet.Connack{ReturnCode: code}
	c.conn.Write(ack.Encode())
}

func refusalCode(err error) (packet.ConnectReturnCode, bool) {
	if err == nil {
		return 0, false
	}
	switch {
	case errors.Is(err, xerror.ErrUnsupportedProtocolName), errors.Is(err, xerror.ErrUnsupportedProtocolLevel):
		return packet.ConnectRefusedUnacceptableProtocol, true
	case errors.Is(err, xerror.ErrIdentifierRejected):
		return packet.ConnectRefusedIdentifierRejected, true
	default:
		return 0, false
	}
}

// handshake implements spec §4.6 steps 2-5: validate, authenticate, run
// on_connect, take over any existing session, send CONNACK, flush the
// offline queue. It returns false if the connection was refused and closed.
func (c *connection) handshake(conn *packet.Connect) bool {
	clientID := conn.ClientID
	if clientID == "" {
		if !c.b.Cfg.AllowZeroLengthClientID {
			c.refuse(packet.ConnectRefusedIdentifierRejected)
			return false
		}
		clientID = uuid.New().String()
	}

	if !c.b.Cfg.AllowAnonymous && !conn.UsernameFlag {
		c.refuse(packet.ConnectRefusedNotAuthorized)
		return false
	}
	if conn.UsernameFlag {
		if !c.b.Auth.Authenticate(clientID, conn.Username, string(conn.Password)) {
			c.refuse(packet.ConnectRefusedBadUsernameOrPassword)
			return false
		}
	}

	if c.b.Hook.OnConnect != nil && !c.b.Hook.OnConnect(clientID, conn.Username) {
		c.refuse(packet.ConnectRefusedNotAuthorized)
		return false
	}

	sess, prevConn, sessionPresent := c.b.Store.CreateOrTakeover(clientID, conn.CleanSession)
	if prevConn != nil {
		if c.b.Log != nil {
			c.b.Log.LogTakeover(clientID, c.conn.RemoteAddr().String())
		}
		prevConn.Close()
	}

	sess.Attach(c.conn, c.conn.RemoteAddr().String())
	sess.KeepAliveSeconds = conn.KeepAlive
	if conn.WillFlag {
		sess.Will = &session.Will{Topic: conn.WillTopic, Payload: conn.WillMessage, QoS: conn.WillQoS, Retain: conn.WillRetain}
	} else {
		sess.Will = nil
	}
	c.session = sess

	c.conn.Write((&packet.Connack{SessionPresent: sessionPresent, ReturnCode: packet.ConnectAccepted}).Encode())

	for _, m := range sess.DrainOffline() {
		c.b.Deliver(sess, m.Topic, m.Payload, m.QoS, m.Retain)
	}
	return true
}

func (c *connection) refuse(code packet.ConnectReturnCode) {
	c.conn.Write((&packet.Connack{ReturnCode: code}).Encode())
}

// dispatch handles one post-handshake packet, returning false when the
// connection loop should stop (DISCONNECT or an unrecoverable error).
func (c *connection) dispatch(p *packet.Packet) bool {
	switch p.Type {
	case packet.PUBLISH:
		return c.handlePublish(p.Publish)
	case packet.PUBACK:
		c.session.CompleteOutflight(p.Puback.PacketID)
	case packet.PUBREC:
		c.handlePubrec(p.Pubrec)
	case packet.PUBREL:
		c.handlePubrel(p.Pubrel)
	case packet.PUBCOMP:
		c.session.CompleteOutflight(p.Pubcomp.PacketID)
	case packet.SUBSCRIBE:
		c.handleSubscribe(p.Subscribe)
	case packet.UNSUBSCRIBE:
		c.handleUnsubscribe(p.Unsubscribe)
	case packet.PINGREQ:
		c.conn.Write((&packet.Pingresp{}).Encode())
	case packet.DISCONNECT:
		c.session.Will = nil
		c.state = disconnecting
		return false
	default:
		return false
	}
	return true
}

func (c *connection) handlePublish(p *packet.Publish) bool {
	c.b.Stats.PublishReceived.Add(1)

	qos := p.QoS
	if !c.b.Cfg.QoS2Enabled && qos == packet.QoS2 {
		qos = packet.QoS1
	}

	oversized := len(p.Payload) > c.b.Cfg.MaxPayloadSize
	authorized := c.b.Router.AuthorizePublish(c.session.ClientID, p.Topic)
	shouldRoute := !oversized && authorized

	if oversized && c.b.Log != nil {
		c.b.Log.Warn("dropping oversized publish",
			logger.ClientID(c.session.ClientID), logger.String("topic", p.Topic),
			logger.Int("payload_size", len(p.Payload)), logger.Int("max_payload_size", c.b.Cfg.MaxPayloadSize))
	}
	if !oversized && !authorized && c.b.Log != nil {
		c.b.Log.Warn("dropping unauthorized publish",
			logger.ClientID(c.session.ClientID), logger.String("topic", p.Topic))
	}

	switch qos {
	case packet.QoS0:
		if shouldRoute {
			c.b.Router.Route(c.session.ClientID, p.Topic, p.Payload, packet.QoS0, p.Retain)
		}
	case packet.QoS1:
		if shouldRoute {
			c.b.Router.Route(c.session.ClientID, p.Topic, p.Payload, packet.QoS1, p.Retain)
		}
		c.conn.Write((&packet.PubAck{PacketID: p.PacketID}).Encode())
	case packet.QoS2:
		alreadySeen := c.session.InboundQoS2Seen(p.PacketID)
		if !alreadySeen && shouldRoute {
			c.b.Router.Route(c.session.ClientID, p.Topic, p.Payload, packet.QoS2, p.Retain)
		}
		c.conn.Write((&packet.PubRec{PacketID: p.PacketID}).Encode())
	}
	return true
}

func (c *connection) handlePubrec(p *packet.PubRec) {
	c.session.AdvanceOutflight(p.PacketID, session.AwaitPubcomp)
	c.conn.Write((&packet.PubRel{PacketID: p.PacketID}).Encode())
}

func (c *connection) handlePubrel(p *packet.PubRel) {
	c.session.ReleaseInboundQoS2(p.PacketID)
	c.conn.Write((&packet.PubComp{PacketID: p.PacketID}).Encode())
}

func (c *connection) handleSubscribe(p *packet.Subscribe) {
	codes := make([]packet.SubackCode, len(p.Filters))
	for i, f := range p.Filters {
		granted := c.b.Router.AuthorizeSubscribe(c.session.ClientID, f.Filter)
		if granted < 0 {
			codes[i] = packet.SubackFailure
			continue
		}
		grantedQoS := f.QoS
		if packet.QoS(granted) < grantedQoS {
			grantedQoS = packet.QoS(granted)
		}
		if c.b.Hook.OnSubscribe != nil {
			override := c.b.Hook.OnSubscribe(c.session.ClientID, f.Filter, grantedQoS)
			if override < 0 {
				codes[i] = packet.SubackFailure
				continue
			}
			grantedQoS = packet.QoS(override)
		}

		if err := c.b.Topic.Subscribe(f.Filter, c.session.ClientID, grantedQoS); err != nil {
			codes[i] = packet.SubackFailure
			continue
		}
		c.session.AddSubscription(f.Filter, grantedQoS)
		codes[i] = packet.SubackCode(grantedQoS)
		c.b.Router.DeliverRetained(c.session, f.Filter, grantedQoS)
	}
	c.conn.Write((&packet.Suback{PacketID: p.PacketID, Codes: codes}).Encode())
}

func (c *connection) handleUnsubscribe(p *packet.Unsubscribe) {
	for _, filter := range p.Filters {
		c.b.Topic.Unsubscribe(filter, c.session.ClientID)
		c.session.RemoveSubscription(filter)
		if c.b.Hook.OnUnsubscribe != nil {
			c.b.Hook.OnUnsubscribe(c.session.ClientID, filter)
		}
	}
	c.conn.Write((&packet.Unsuback{PacketID: p.PacketID}).Encode())
}

// teardown runs on every exit from the connected state: publishes the will
// on ungraceful disconnect, fires on_disconnect, and detaches the session.
func (c *connection) teardown() {
	graceful := c.state == disconnecting
	c.state = closed

	if !graceful && c.session.Will != nil {
		will := c.session.Will
		publish := true
		if c.b.Hook.OnWillPublish != nil {
			publish = c.b.Hook.OnWillPublish(c.session.ClientID, will.Topic)
		}
		if publish {
			if c.b.Log != nil {
				c.b.Log.LogWillPublish(c.session.ClientID, will.Topic, int(will.QoS))
			}
			c.b.Router.Route(c.session.ClientID, will.Topic, will.Payload, will.QoS, will.Retain)
		}
	}

	if c.b.Hook.OnDisconnect != nil {
		c.b.Hook.OnDisconnect(c.session.ClientID, graceful)
	}
	c.b.Store.Detach(c.session.ClientID)
}
