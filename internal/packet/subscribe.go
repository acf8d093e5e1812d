package packet

import "github.com/edgebroker/goqttd/internal/xerror"

// TopicFilter pairs a subscription filter with its requested QoS.
type TopicFilter struct {
	Filter string
	QoS    QoS
}

// Subscribe is the SUBSCRIBE packet.
type Subscribe struct {
	PacketID uint16
	Filters  []TopicFilter
}

func DecodeSubscribe(flags byte, body []byte) (*Subscribe, error) {
	if flags != 0x02 { // [MQTT-3.8.1-1]
		return nil, malformed("SUBSCRIBE, fixed header flags")
	}
	id, offset, err := readUint16(body, 0, "SUBSCRIBE, packet identifier")
	if err != nil {
		return nil, err
	}
	if id == 0 {
		return nil, &xerror.Err{Context: "SUBSCRIBE, packet identifier", Message: xerror.ErrInvalidPacketID}
	}
	s := &Subscribe{PacketID: id}

	if offset >= len(body) {
		return nil, malformed("SUBSCRIBE, payload") // [MQTT-3.8.3-3]
	}
	for offset < len(body) {
		filter, o, err := readString(body, offset, "SUBSCRIBE, topic filter")
		if err != nil {
			return nil, err
		}
		offset = o
		if err := validateTopicFilter(filter); err != nil {
			return nil, err
		}
		if offset >= len(body) {
			return nil, malformed("SUBSCRIBE, requested QoS")
		}
		qosByte := body[offset]
		offset++
		if qosByte&0xFC != 0 {
			return nil, malformed("SUBSCRIBE, requested QoS")
		}
		qos := QoS(qosByte)
		if qos > QoS2 {
			return nil, &xerror.Err{Context: "SUBSCRIBE, requested QoS", Message: xerror.ErrInvalidQoSLevel}
		}
		s.Filters = append(s.Filters, TopicFilter{Filter: filter, QoS: qos})
	}
	return s, nil
}

func (s *Subscribe) Encode() []byte {
	body := writeUint16(nil, s.PacketID)
	for _, f := range s.Filters {
		body = writeString(body, f.Filter)
		body = append(body, byte(f.QoS))
	}
	return frame(SUBSCRIBE, 0x02, body)
}

// SubackCode is a single SUBACK payload entry: a granted QoS or failure.
type SubackCode byte

const (
	SubackQoS0    SubackCode = 0x00
	SubackQoS1    SubackCode = 0x01
	SubackQoS2    SubackCode = 0x02
	SubackFailure SubackCode = 0x80
)

// Suback is the server's response to SUBSCRIBE.
type Suback struct {
	PacketID uint16
	Codes    []SubackCode
}

func DecodeSuback(flags byte, body []byte) (*Suback, error) {
	if flags != 0x00 {
		return nil, malformed("SUBACK, fixed header flags")
	}
	id, offset, err := readUint16(body, 0, "SUBACK, packet identifier")
	if err != nil {
		return nil, err
	}
	s := &Suback{PacketID: id}
	for _, b := range body[offset:] {
		if b != 0x00 && b != 0x01 && b != 0x02 && b != 0x80 {
			return nil, malformed("SUBACK, return code")
		}
		s.Codes = append(s.Codes, SubackCode(b))
	}
	return s, nil
}

func (s *Suback) Encode() []byte {
	body := writeUint16(nil, s.PacketID)
	for _, c := range s.Codes {
		body = append(body, byte(c))
	}
	return frame(SUBACK, 0x00, body)
}

// Unsubscribe is the UNSUBSCRIBE packet.
type Unsubscribe struct {
	PacketID uint16
	Filters  []string
}

func DecodeUnsubscribe(flags byte, body []byte) (*Unsubscribe, error) {
	if flags != 0x02 { // [MQTT-3.10.1-1]
		return nil, malformed("UNSUBSCRIBE, fixed header flags")
	}
	id, offset, err := readUint16(body, 0, "UNSUBSCRIBE, packet identifier")
	if err != nil {
		return nil, err
	}
	if id == 0 {
		return nil, &xerror.Err{Context: "UNSUBSCRIBE, packet identifier", Message: xerror.ErrInvalidPacketID}
	}
	u := &Unsubscribe{PacketID: id}
	if offset >= len(body) {
		return nil, malformed("UNSUBSCRIBE, payload")
	}
	for offset < len(body) {
		filter, o, err := readString(body, offset, "UNSUBSCRIBE, topic filter")
		if err != nil {
			return nil, err
		}
		offset = o
		if err := validateTopicFilter(filter); err != nil {
			return nil, err
		}
		u.Filters = append(u.Filters, filter)
	}
	return u, nil
}

func (u *Unsubscribe) Encode() []byte {
	body := writeUint16(nil, u.PacketID)
	for _, f := range u.Filters {
		body = writeString(body, f)
	}
	return frame(UNSUBSCRIBE, 0x02, body)
}

// Unsuback is the server's response to UNSUBSCRIBE.
type Unsuback struct{ PacketID uint16 }

func DecodeUnsuback(flags byte, body []byte) (*Unsuback, error) {
	if flags != 0x00 {
		return nil, malformed("UNSUBACK, fixed header flags")
	}
	id, _, err := readUint16(body, 0, "UNSUBACK, packet identifier")
	if err != nil {
		return nil, err
	}
	return &Unsuback{PacketID: id}, nil
}

func (u *Unsuback) Encode() []byte {
	return frame(UNSUBACK, 0x00, writeUint16(nil, u.PacketID))
}
