package packet

import (
	"testing"

	"github.com/edgebroker/goqttd/internal/xerror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, p *Packet) *Packet {
	t.Helper()
	raw := p.Encode()
	got, err := Decode(raw)
	require.NoError(t, err)
	return got
}

func TestConnectRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   *Connect
	}{
		{"minimal", &Connect{ProtocolName: "MQTT", ProtocolLevel: 4, CleanSession: true, KeepAlive: 60, ClientID: "abc"}},
		{"with will", &Connect{
			ProtocolName: "MQTT", ProtocolLevel: 4,
			CleanSession: true, WillFlag: true, WillQoS: QoS1, WillRetain: true,
			KeepAlive: 30, ClientID: "will-client",
			WillTopic: "clients/will-client/status", WillMessage: []byte("offline"),
		}},
		{"with credentials", &Connect{
			ProtocolName: "MQTT", ProtocolLevel: 4,
			CleanSession: false, UsernameFlag: true, PasswordFlag: true,
			KeepAlive: 120, ClientID: "authed",
			Username: "alice", Password: []byte("s3cret"),
		}},
		{"empty client id, clean session", &Connect{ProtocolName: "MQTT", ProtocolLevel: 4, CleanSession: true, KeepAlive: 10, ClientID: ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Packet{Type: CONNECT, Connect: tt.in}
			got := roundTrip(t, p)
			assert.Equal(t, tt.in, got.Connect)
		})
	}
}

func TestDecodeConnectRejectsBadProtocolName(t *testing.T) {
	body := []byte{0, 4, 'M', 'Q', 'A', 'X', 4, 2, 0, 10, 0, 3, 'a', 'b', 'c'}
	_, err := DecodeConnect(0x00, body)
	assert.Error(t, err)
}

func TestDecodeConnectRejectsEmptyClientIDWithoutCleanSession(t *testing.T) {
	body := []byte{0, 4, 'M', 'Q', 'T', 'T', 4, 0x00, 0, 10, 0, 0}
	_, err := DecodeConnect(0x00, body)
	assert.Error(t, err)
}

func TestPublishRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   *Publish
	}{
		{"qos0", &Publish{QoS: QoS0, Topic: "a/b", Payload: []byte("hello")}},
		{"qos1", &Publish{QoS: QoS1, Topic: "a/b/c", PacketID: 42, Payload: []byte("x")}},
		{"qos2 dup retain", &Publish{Dup: true, QoS: QoS2, Retain: true, Topic: "sys", PacketID: 7, Payload: nil}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Packet{Type: PUBLISH, Publish: tt.in}
			got := roundTrip(t, p)
			assert.Equal(t, tt.in, got.Publish)
		})
	}
}

func TestDecodePublishRejectsDupOnQoS0(t *testing.T) {
	_, err := DecodePublish(0x08, []byte{0, 1, 'a'})
	assert.Error(t, err)
}

func TestDecodePublishRejectsWildcardTopic(t *testing.T) {
	body := append(writeString(nil, "a/+/b"), []byte("x")...)
	_, err := DecodePublish(0x00, body)
	assert.Error(t, err)
}

func TestAckRoundTrips(t *testing.T) {
	assert.Equal(t, &PubAck{PacketID: 5}, roundTrip(t, &Packet{Type: PUBACK, Puback: &PubAck{PacketID: 5}}).Puback)
	assert.Equal(t, &PubRec{PacketID: 6}, roundTrip(t, &Packet{Type: PUBREC, Pubrec: &PubRec{PacketID: 6}}).Pubrec)
	assert.Equal(t, &PubRel{PacketID: 7}, roundTrip(t, &Packet{Type: PUBREL, Pubrel: &PubRel{PacketID: 7}}).Pubrel)
	assert.Equal(t, &PubComp{PacketID: 8}, roundTrip(t, &Packet{Type: PUBCOMP, Pubcomp: &PubComp{PacketID: 8}}).Pubcomp)
}

func TestPubrelRejectsBadFlags(t *testing.T) {
	_, err := DecodePubRel(0x00, writeUint16(nil, 1))
	assert.Error(t, err)
}

func TestConnackRoundTrip(t *testing.T) {
	p := &Packet{Type: CONNACK, Connack: &Connack{SessionPresent: true, ReturnCode: ConnectAccepted}}
	got := roundTrip(t, p)
	assert.Equal(t, p.Connack, got.Connack)
}

func TestConnackSessionPresentClearedOnRefusal(t *testing.T) {
	c := &Connack{SessionPresent: true, ReturnCode: ConnectRefusedNotAuthorized}
	raw := c.Encode()
	got, err := DecodeConnack(raw[0]&0x0F, raw[2:])
	require.NoError(t, err)
	assert.False(t, got.SessionPresent)
}

func TestSubscribeRoundTrip(t *testing.T) {
	p := &Packet{Type: SUBSCRIBE, Subscribe: &Subscribe{
		PacketID: 10,
		Filters: []TopicFilter{
			{Filter: "a/b", QoS: QoS0},
			{Filter: "a/+/c", QoS: QoS1},
			{Filter: "#", QoS: QoS2},
		},
	}}
	got := roundTrip(t, p)
	assert.Equal(t, p.Subscribe, got.Subscribe)
}

func TestDecodeSubscribeRejectsInvalidWildcard(t *testing.T) {
	body := writeUint16(nil, 1)
	body = writeString(body, "a/b+/c")
	body = append(body, 0)
	_, err := DecodeSubscribe(0x02, body)
	assert.Error(t, err)
}

func TestSubackRoundTrip(t *testing.T) {
	p := &Packet{Type: SUBACK, Suback: &Suback{PacketID: 10, Codes: []SubackCode{SubackQoS0, SubackQoS2, SubackFailure}}}
	got := roundTrip(t, p)
	assert.Equal(t, p.Suback, got.Suback)
}

func TestUnsubscribeRoundTrip(t *testing.T) {
	p := &Packet{Type: UNSUBSCRIBE, Unsubscribe: &Unsubscribe{PacketID: 3, Filters: []string{"a/b", "#"}}}
	got := roundTrip(t, p)
	assert.Equal(t, p.Unsubscribe, got.Unsubscribe)
}

func TestUnsubackRoundTrip(t *testing.T) {
	p := &Packet{Type: UNSUBACK, Unsuback: &Unsuback{PacketID: 3}}
	got := roundTrip(t, p)
	assert.Equal(t, p.Unsuback, got.Unsuback)
}

func TestZeroPayloadPacketsRoundTrip(t *testing.T) {
	assert.NotNil(t, roundTrip(t, &Packet{Type: PINGREQ, Pingreq: &Pingreq{}}).Pingreq)
	assert.NotNil(t, roundTrip(t, &Packet{Type: PINGRESP, Pingresp: &Pingresp{}}).Pingresp)
	assert.NotNil(t, roundTrip(t, &Packet{Type: DISCONNECT, Disconnect: &Disconnect{}}).Disconnect)
}

func TestRemainingLengthEncoding(t *testing.T) {
	tests := []struct {
		n    int
		want []byte
	}{
		{0, []byte{0x00}},
		{127, []byte{0x7F}},
		{128, []byte{0x80, 0x01}},
		{16383, []byte{0xFF, 0x7F}},
		{16384, []byte{0x80, 0x80, 0x01}},
		{2097151, []byte{0xFF, 0xFF, 0x7F}},
		{2097152, []byte{0x80, 0x80, 0x80, 0x01}},
		{MaxRemainingLength, []byte{0xFF, 0xFF, 0xFF, 0x7F}},
	}
	for _, tt := range tests {
		got := EncodeRemainingLength(tt.n)
		assert.Equal(t, tt.want, got)

		length, consumed, err := DecodeRemainingLength(got)
		require.NoError(t, err)
		assert.Equal(t, tt.n, length)
		assert.Equal(t, len(tt.want), consumed)
	}
}

func TestDecodeRemainingLengthNeedsMore(t *testing.T) {
	_, _, err := DecodeRemainingLength([]byte{0x80})
	assert.ErrorIs(t, err, xerror.ErrNeedMore)
}

func TestScanPacketSplitsStream(t *testing.T) {
	scan := ScanPacket(1024)
	pr := &Pingreq{}
	frame1 := pr.Encode()
	ds := &Disconnect{}
	frame2 := ds.Encode()
	stream := append(append([]byte{}, frame1...), frame2...)

	advance, token, err := scan(stream, false)
	require.NoError(t, err)
	assert.Equal(t, len(frame1), advance)
	assert.Equal(t, frame1, token)

	advance2, token2, err := scan(stream[advance:], false)
	require.NoError(t, err)
	assert.Equal(t, len(frame2), advance2)
	assert.Equal(t, frame2, token2)
}

func TestScanPacketNeedsMore(t *testing.T) {
	scan := ScanPacket(1024)
	advance, token, err := scan([]byte{0x30, 0x82}, false)
	assert.Equal(t, 0, advance)
	assert.Nil(t, token)
	assert.NoError(t, err)
}

func TestScanPacketRejectsOversized(t *testing.T) {
	scan := ScanPacket(10)
	body := make([]byte, 20)
	frame := append([]byte{byte(PUBLISH)}, EncodeRemainingLength(len(body))...)
	frame = append(frame, body...)
	_, _, err := scan(frame, false)
	assert.Error(t, err)
}
