package packet

import "github.com/edgebroker/goqttd/internal/xerror"

// PubAck acknowledges a QoS 1 PUBLISH.
type PubAck struct{ PacketID uint16 }

// PubRec is the first half of the QoS 2 handshake, sent by the receiver.
type PubRec struct{ PacketID uint16 }

// PubRel is the second half of the QoS 2 handshake, sent by the sender.
type PubRel struct{ PacketID uint16 }

// PubComp completes the QoS 2 handshake.
type PubComp struct{ PacketID uint16 }

func decodePacketIDOnly(context string, flags byte, body []byte, wantFlags byte) (uint16, error) {
	if flags != wantFlags {
		return 0, malformed(context + ", fixed header flags")
	}
	id, _, err := readUint16(body, 0, context+", packet identifier")
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, &xerror.Err{Context: context + ", packet identifier", Message: xerror.ErrInvalidPacketID}
	}
	return id, nil
}

func DecodePubAck(flags byte, body []byte) (*PubAck, error) {
	id, err := decodePacketIDOnly("PUBACK", flags, body, 0x00)
	if err != nil {
		return nil, err
	}
	return &PubAck{PacketID: id}, nil
}

func (p *PubAck) Encode() []byte {
	return frame(PUBACK, 0x00, writeUint16(nil, p.PacketID))
}

func DecodePubRec(flags byte, body []byte) (*PubRec, error) {
	id, err := decodePacketIDOnly("PUBREC", flags, body, 0x00)
	if err != nil {
		return nil, err
	}
	return &PubRec{PacketID: id}, nil
}

func (p *PubRec) Encode() []byte {
	return frame(PUBREC, 0x00, writeUint16(nil, p.PacketID))
}

// DecodePubRel parses a PUBREL packet. The fixed header reserved bits must be
// 0b0010 per spec ([MQTT-3.6.1-1]).
func DecodePubRel(flags byte, body []byte) (*PubRel, error) {
	id, err := decodePacketIDOnly("PUBREL", flags, body, 0x02)
	if err != nil {
		return nil, err
	}
	return &PubRel{PacketID: id}, nil
}

func (p *PubRel) Encode() []byte {
	return frame(PUBREL, 0x02, writeUint16(nil, p.PacketID))
}

func DecodePubComp(flags byte, body []byte) (*PubComp, error) {
	id, err := decodePacketIDOnly("PUBCOMP", flags, body, 0x00)
	if err != nil {
		return nil, err
	}
	return &PubComp{PacketID: id}, nil
}

func (p *PubComp) Encode() []byte {
	return frame(PUBCOMP, 0x00, writeUint16(nil, p.PacketID))
}
