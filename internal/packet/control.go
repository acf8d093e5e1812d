package packet

// Pingreq keeps the connection alive.
type Pingreq struct{}

// Pingresp answers a PINGREQ.
type Pingresp struct{}

// Disconnect is a graceful connection close notification.
type Disconnect struct{}

func decodeNoPayload(context string, flags byte, body []byte) error {
	if flags != 0x00 {
		return malformed(context + ", fixed header flags")
	}
	if len(body) != 0 {
		return malformed(context + ", remaining length")
	}
	return nil
}

func DecodePingreq(flags byte, body []byte) (*Pingreq, error) {
	if err := decodeNoPayload("PINGREQ", flags, body); err != nil {
		return nil, err
	}
	return &Pingreq{}, nil
}

func (p *Pingreq) Encode() []byte { return frame(PINGREQ, 0x00, nil) }

func DecodePingresp(flags byte, body []byte) (*Pingresp, error) {
	if err := decodeNoPayload("PINGRESP", flags, body); err != nil {
		return nil, err
	}
	return &Pingresp{}, nil
}

func (p *Pingresp) Encode() []byte { return frame(PINGRESP, 0x00, nil) }

func DecodeDisconnect(flags byte, body []byte) (*Disconnect, error) {
	if err := decodeNoPayload("DISCONNECT", flags, body); err != nil {
		return nil, err
	}
	return &Disconnect{}, nil
}

func (d *Disconnect) Encode() []byte { return frame(DISCONNECT, 0x00, nil) }
