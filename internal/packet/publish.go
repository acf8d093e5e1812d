package packet

import "github.com/edgebroker/goqttd/internal/xerror"

// Publish is the PUBLISH packet, carried in both directions.
type Publish struct {
	Dup      bool
	QoS      QoS
	Retain   bool
	Topic    string
	PacketID uint16 // zero for QoS 0
	Payload  []byte
}

// DecodePublish parses a PUBLISH packet from the fixed-header flags and body.
func DecodePublish(flags byte, body []byte) (*Publish, error) {
	p := &Publish{
		Dup:    flags&0x08 != 0,
		QoS:    QoS((flags & 0x06) >> 1),
		Retain: flags&0x01 != 0,
	}
	if p.QoS > QoS2 {
		return nil, &xerror.Err{Context: "PUBLISH, fixed header flags", Message: xerror.ErrInvalidQoSLevel}
	}
	if p.QoS == QoS0 && p.Dup { // [MQTT-3.3.1-2]
		return nil, &xerror.Err{Context: "PUBLISH, fixed header flags", Message: xerror.ErrInvalidDUPFlag}
	}

	topic, offset, err := readString(body, 0, "PUBLISH, topic name")
	if err != nil {
		return nil, err
	}
	p.Topic = topic
	if err := validateTopicName(topic); err != nil {
		return nil, err
	}

	if p.QoS != QoS0 {
		id, o, err := readUint16(body, offset, "PUBLISH, packet identifier")
		if err != nil {
			return nil, err
		}
		if id == 0 {
			return nil, &xerror.Err{Context: "PUBLISH, packet identifier", Message: xerror.ErrInvalidPacketID}
		}
		p.PacketID = id
		offset = o
	}

	p.Payload = append([]byte(nil), body[offset:]...)
	return p, nil
}

// Encode renders the PUBLISH packet back to wire bytes.
func (p *Publish) Encode() []byte {
	var flags byte
	if p.Dup {
		flags |= 0x08
	}
	flags |= byte(p.QoS) << 1
	if p.Retain {
		flags |= 0x01
	}

	var body []byte
	body = writeString(body, p.Topic)
	if p.QoS != QoS0 {
		body = writeUint16(body, p.PacketID)
	}
	body = append(body, p.Payload...)

	return frame(PUBLISH, flags, body)
}
