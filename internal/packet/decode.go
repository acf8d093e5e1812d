package packet

import "github.com/edgebroker/goqttd/internal/xerror"

// Decode parses one complete MQTT frame, as produced by ScanPacket, into a
// Packet. It dispatches on the type nibble of the fixed header's first byte.
func Decode(raw []byte) (*Packet, error) {
	if len(raw) < 1 {
		return nil, &xerror.Err{Context: "fixedheader", Message: xerror.ErrEmptyBuffer}
	}
	t := Type(raw[0] & 0xF0)
	flags := raw[0] & 0x0F

	remLen, consumed, err := DecodeRemainingLength(raw[1:])
	if err != nil {
		return nil, err
	}
	body := raw[1+consumed:]
	if len(body) != remLen {
		return nil, &xerror.Err{Context: "fixedheader", Message: xerror.ErrInvalidPacketLength}
	}

	p := &Packet{Type: t}
	switch t {
	case CONNECT:
		p.Connect, err = DecodeConnect(flags, body)
	case CONNACK:
		p.Connack, err = DecodeConnack(flags, body)
	case PUBLISH:
		p.Publish, err = DecodePublish(flags, body)
	case PUBACK:
		p.Puback, err = DecodePubAck(flags, body)
	case PUBREC:
		p.Pubrec, err = DecodePubRec(flags, body)
	case PUBREL:
		p.Pubrel, err = DecodePubRel(flags, body)
	case PUBCOMP:
		p.Pubcomp, err = DecodePubComp(flags, body)
	case SUBSCRIBE:
		p.Subscribe, err = DecodeSubscribe(flags, body)
	case SUBACK:
		p.Suback, err = DecodeSuback(flags, body)
	case UNSUBSCRIBE:
		p.Unsubscribe, err = DecodeUnsubscribe(flags, body)
	case UNSUBACK:
		p.Unsuback, err = DecodeUnsuback(flags, body)
	case PINGREQ:
		p.Pingreq, err = DecodePingreq(flags, body)
	case PINGRESP:
		p.Pingresp, err = DecodePingresp(flags, body)
	case DISCONNECT:
		p.Disconnect, err = DecodeDisconnect(flags, body)
	default:
		return nil, &xerror.Err{Context: "fixedheader", Message: xerror.ErrInvalidPacketType}
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Encode renders a Packet back to wire bytes, dispatching on its Type.
func (p *Packet) Encode() []byte {
	switch p.Type {
	case CONNECT:
		return p.Connect.Encode()
	case CONNACK:
		return p.Connack.Encode()
	case PUBLISH:
		return p.Publish.Encode()
	case PUBACK:
		return p.Puback.Encode()
	case PUBREC:
		return p.Pubrec.Encode()
	case PUBREL:
		return p.Pubrel.Encode()
	case PUBCOMP:
		return p.Pubcomp.Encode()
	case SUBSCRIBE:
		return p.Subscribe.Encode()
	case SUBACK:
		return p.Suback.Encode()
	case UNSUBSCRIBE:
		return p.Unsubscribe.Encode()
	case UNSUBACK:
		return p.Unsuback.Encode()
	case PINGREQ:
		return p.Pingreq.Encode()
	case PINGRESP:
		return p.Pingresp.Encode()
	case DISCONNECT:
		return p.Disconnect.Encode()
	default:
		return nil
	}
}
