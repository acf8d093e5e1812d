package packet

import "github.com/edgebroker/goqttd/internal/xerror"

// Connect is the CONNECT packet (client to server).
type Connect struct {
	ProtocolName  string
	ProtocolLevel byte

	CleanSession bool
	WillFlag     bool
	WillQoS      QoS
	WillRetain   bool
	PasswordFlag bool
	UsernameFlag bool

	KeepAlive uint16

	ClientID    string
	WillTopic   string
	WillMessage []byte
	Username    string
	Password    []byte
}

// DecodeConnect parses a CONNECT packet given its fixed-header byte and the
// bytes following the remaining-length field (variable header + payload).
func DecodeConnect(flags byte, body []byte) (*Connect, error) {
	if flags != 0x00 {
		return nil, malformed("CONNECT, fixed header flags")
	}

	c := &Connect{}
	offset := 0

	name, offset, err := readString(body, offset, "CONNECT, protocol name")
	if err != nil {
		return nil, err
	}
	c.ProtocolName = name
	if name != "MQTT" {
		return nil, &xerror.Err{Context: "CONNECT, protocol name", Message: xerror.ErrUnsupportedProtocolName}
	}

	if offset >= len(body) {
		return nil, malformed("CONNECT, protocol level")
	}
	c.ProtocolLevel = body[offset]
	offset++
	if c.ProtocolLevel != 4 {
		return nil, &xerror.Err{Context: "CONNECT, protocol level", Message: xerror.ErrUnsupportedProtocolLevel}
	}

	if offset >= len(body) {
		return nil, malformed("CONNECT, connect flags")
	}
	connectFlags := body[offset]
	offset++

	if connectFlags&0x01 != 0 { // [MQTT-3.1.2-3]
		return nil, &xerror.Err{Context: "CONNECT, connect flags", Message: xerror.ErrReservedBitSet}
	}
	c.CleanSession = connectFlags&0x02 != 0
	c.WillFlag = connectFlags&0x04 != 0
	c.WillQoS = QoS((connectFlags & 0x18) >> 3)
	c.WillRetain = connectFlags&0x20 != 0
	c.PasswordFlag = connectFlags&0x40 != 0
	c.UsernameFlag = connectFlags&0x80 != 0

	if !c.WillFlag && (c.WillQoS != 0 || c.WillRetain) { // [MQTT-3.1.2-11]
		return nil, malformed("CONNECT, will flags")
	}
	if c.WillFlag && c.WillQoS > QoS2 {
		return nil, &xerror.Err{Context: "CONNECT, will qos", Message: xerror.ErrInvalidWillQoS}
	}
	if !c.UsernameFlag && c.PasswordFlag {
		return nil, &xerror.Err{Context: "CONNECT, connect flags", Message: xerror.ErrPasswordWithoutUsername}
	}

	keepAlive, offset, err := readUint16(body, offset, "CONNECT, keep alive")
	if err != nil {
		return nil, err
	}
	c.KeepAlive = keepAlive

	clientID, offset, err := readString(body, offset, "CONNECT, client id")
	if err != nil {
		return nil, err
	}
	c.ClientID = clientID

	if c.ClientID == "" && !c.CleanSession { // [MQTT-3.1.3-7],[MQTT-3.1.3-8]
		return nil, &xerror.Err{Context: "CONNECT, client id", Message: xerror.ErrIdentifierRejected}
	}

	if c.WillFlag {
		willTopic, o, err := readString(body, offset, "CONNECT, will topic")
		if err != nil {
			return nil, err
		}
		offset = o
		c.WillTopic = willTopic
		if err := validateTopicName(willTopic); err != nil {
			return nil, err
		}

		if offset+2 > len(body) {
			return nil, malformed("CONNECT, will message")
		}
		n := int(body[offset])<<8 | int(body[offset+1])
		offset += 2
		if offset+n > len(body) {
			return nil, malformed("CONNECT, will message")
		}
		c.WillMessage = append([]byte(nil), body[offset:offset+n]...)
		offset += n
	}

	if c.UsernameFlag {
		username, o, err := readString(body, offset, "CONNECT, username")
		if err != nil {
			return nil, err
		}
		offset = o
		c.Username = username
	}

	if c.PasswordFlag {
		if offset+2 > len(body) {
			return nil, malformed("CONNECT, password")
		}
		n := int(body[offset])<<8 | int(body[offset+1])
		offset += 2
		if offset+n > len(body) {
			return nil, malformed("CONNECT, password")
		}
		c.Password = append([]byte(nil), body[offset:offset+n]...)
		offset += n
	}

	return c, nil
}

// Encode renders the CONNECT packet back to wire bytes.
func (c *Connect) Encode() []byte {
	var body []byte
	body = writeString(body, "MQTT")
	body = append(body, 4)

	var flags byte
	if c.UsernameFlag {
		flags |= 0x80
	}
	if c.PasswordFlag {
		flags |= 0x40
	}
	if c.WillRetain {
		flags |= 0x20
	}
	flags |= byte(c.WillQoS) << 3
	if c.WillFlag {
		flags |= 0x04
	}
	if c.CleanSession {
		flags |= 0x02
	}
	body = append(body, flags)
	body = writeUint16(body, c.KeepAlive)
	body = writeString(body, c.ClientID)

	if c.WillFlag {
		body = writeString(body, c.WillTopic)
		body = append(body, byte(len(c.WillMessage)>>8), byte(len(c.WillMessage)))
		body = append(body, c.WillMessage...)
	}
	if c.UsernameFlag {
		body = writeString(body, c.Username)
	}
	if c.PasswordFlag {
		body = append(body, byte(len(c.Password)>>8), byte(len(c.Password)))
		body = append(body, c.Password...)
	}

	return frame(CONNECT, 0x00, body)
}

func frame(t Type, flags byte, body []byte) []byte {
	out := []byte{byte(t) | flags}
	out = append(out, EncodeRemainingLength(len(body))...)
	out = append(out, body...)
	return out
}
