package packet

// ConnectReturnCode is the CONNACK return code (MQTT 3.1.1 §3.2.2.3).
type ConnectReturnCode byte

const (
	ConnectAccepted                     ConnectReturnCode = 0x00
	ConnectRefusedUnacceptableProtocol  ConnectReturnCode = 0x01
	ConnectRefusedIdentifierRejected    ConnectReturnCode = 0x02
	ConnectRefusedServerUnavailable     ConnectReturnCode = 0x03
	ConnectRefusedBadUsernameOrPassword ConnectReturnCode = 0x04
	ConnectRefusedNotAuthorized         ConnectReturnCode = 0x05
)

// Connack is the server's response to CONNECT.
type Connack struct {
	SessionPresent bool
	ReturnCode     ConnectReturnCode
}

func DecodeConnack(flags byte, body []byte) (*Connack, error) {
	if flags != 0x00 {
		return nil, malformed("CONNACK, fixed header flags")
	}
	if len(body) != 2 {
		return nil, malformed("CONNACK, variable header")
	}
	if body[0]&0xFE != 0 {
		return nil, malformed("CONNACK, connect acknowledge flags")
	}
	return &Connack{
		SessionPresent: body[0]&0x01 != 0,
		ReturnCode:     ConnectReturnCode(body[1]),
	}, nil
}

func (c *Connack) Encode() []byte {
	var flags byte
	if c.SessionPresent && c.ReturnCode == ConnectAccepted { // [MQTT-3.2.2-4]
		flags = 0x01
	}
	return frame(CONNACK, 0x00, []byte{flags, byte(c.ReturnCode)})
}
