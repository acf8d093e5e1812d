package management

import (
	"testing"

	"github.com/edgebroker/goqttd/internal/auth"
	"github.com/edgebroker/goqttd/internal/config"
	"github.com/edgebroker/goqttd/internal/hooks"
	"github.com/edgebroker/goqttd/internal/logger"
	"github.com/edgebroker/goqttd/internal/packet"
	"github.com/edgebroker/goqttd/internal/server"
	"github.com/stretchr/testify/require"
)

// fakeConn is a minimal session.Conn for attaching a session without a real
// socket.
type fakeConn struct {
	closed  bool
	written [][]byte
}

func (f *fakeConn) Write(b []byte) (int, error) {
	f.written = append(f.written, append([]byte(nil), b...))
	return len(b), nil
}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

func newTestConsole(t *testing.T) (*Console, *server.Broker) {
	t.Helper()
	cfg := config.Default()
	b := server.New(cfg, logger.New(logger.DevelopmentConfig()), auth.AllowAll{}, hooks.Hook{})
	return New(b), b
}

func TestClientsReportsOnlineAndSubscriptions(t *testing.T) {
	c, b := newTestConsole(t)

	sess, _, _ := b.Store.CreateOrTakeover("device-1", true)
	sess.Attach(&fakeConn{}, "10.0.0.5:54321")
	sess.AddSubscription("sensors/+/temp", packet.QoS1)

	clients := c.Clients()
	require.Len(t, clients, 1)
	require.Equal(t, "device-1", clients[0].ClientID)
	require.True(t, clients[0].Online)
	require.Equal(t, "10.0.0.5:54321", clients[0].RemoteAddr)
	require.Equal(t, packet.QoS1, clients[0].Subscriptions["sensors/+/temp"])
}

func TestStatsReflectsStoreAndTopicCounts(t *testing.T) {
	c, b := newTestConsole(t)

	sess, _, _ := b.Store.CreateOrTakeover("device-1", true)
	sess.Attach(&fakeConn{}, "10.0.0.5:1")
	sess.AddSubscription("a/b", packet.QoS0)
	require.NoError(t, b.Topic.Subscribe("a/b", "device-1", packet.QoS0))
	b.Topic.SetRetained("a/b", []byte("payload"), packet.QoS0)

	stats := c.Stats()
	require.Equal(t, 1, stats.ClientsConnected)
	require.Equal(t, 1, stats.Subscriptions)
	require.Equal(t, 1, stats.RetainedMessages)
}

func TestRetainedDumpAndClear(t *testing.T) {
	c, b := newTestConsole(t)

	b.Topic.SetRetained("a/b", []byte("one"), packet.QoS0)
	b.Topic.SetRetained("a/c", []byte("two"), packet.QoS1)

	dump := c.RetainedDump("a/+")
	require.Len(t, dump, 2)

	c.ClearRetained("a/b")
	dump = c.RetainedDump("a/+")
	require.Len(t, dump, 1)
	require.Equal(t, "a/c", dump[0].Topic)
}

func TestDisconnectClientClosesLiveConnection(t *testing.T) {
	c, b := newTestConsole(t)

	sess, _, _ := b.Store.CreateOrTakeover("device-1", true)
	conn := &fakeConn{}
	sess.Attach(conn, "10.0.0.5:1")

	require.True(t, c.DisconnectClient("device-1"))
	require.True(t, conn.closed)
}

func TestDisconnectClientReturnsFalseWhenOffline(t *testing.T) {
	c, _ := newTestConsole(t)
	require.False(t, c.DisconnectClient("no-such-client"))
}
