package session

import (
	"testing"
	"time"

	"github.com/edgebroker/goqttd/internal/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct{ closed bool }

func (f *fakeConn) Write(b []byte) (int, error) { return len(b), nil }
func (f *fakeConn) Close() error                { f.closed = true; return nil }

// fakeUnsubscriber records Unsubscribe calls, standing in for the topic
// tree in tests that verify the store reconciles it.
type fakeUnsubscriber struct {
	calls []string // "filter/clientID"
}

func (f *fakeUnsubscriber) Unsubscribe(filter, clientID string) {
	f.calls = append(f.calls, filter+"/"+clientID)
}

func TestCreateOrTakeoverNewSession(t *testing.T) {
	st := NewStore(nil, 10, 10)
	s, prev, present := st.CreateOrTakeover("c1", true)
	assert.NotNil(t, s)
	assert.Nil(t, prev)
	assert.False(t, present)
	assert.Equal(t, 1, st.Count())
}

func TestCreateOrTakeoverReusesPersistentSession(t *testing.T) {
	st := NewStore(nil, 10, 10)
	s, _, _ := st.CreateOrTakeover("c1", false)
	s.AddSubscription("a/b", packet.QoS1)
	st.Detach("c1")

	s2, prev, present := st.CreateOrTakeover("c1", false)
	assert.Nil(t, prev)
	assert.True(t, present)
	assert.Equal(t, map[string]packet.QoS{"a/b": packet.QoS1}, s2.SubscriptionSnapshot())
}

func TestCreateOrTakeoverCleanSessionDiscardsState(t *testing.T) {
	fu := &fakeUnsubscriber{}
	st := NewStore(fu, 10, 10)
	s, _, _ := st.CreateOrTakeover("c1", false)
	s.AddSubscription("a/b", packet.QoS1)
	st.Detach("c1")

	s2, _, present := st.CreateOrTakeover("c1", true)
	assert.False(t, present)
	assert.Empty(t, s2.SubscriptionSnapshot())
	assert.Equal(t, []string{"a/b/c1"}, fu.calls)
}

func TestCreateOrTakeoverEvictsOnlineConnection(t *testing.T) {
	st := NewStore(nil, 10, 10)
	s, _, _ := st.CreateOrTakeover("c1", true)
	conn := &fakeConn{}
	s.Attach(conn, "127.0.0.1:1")

	_, prev, _ := st.CreateOrTakeover("c1", true)
	assert.Equal(t, Conn(conn), prev)
}

func TestDetachCleanSessionDeletesRecord(t *testing.T) {
	st := NewStore(nil, 10, 10)
	st.CreateOrTakeover("c1", true)
	st.Detach("c1")
	_, ok := st.Get("c1")
	assert.False(t, ok)
}

func TestDetachCleanSessionUnsubscribesFilters(t *testing.T) {
	fu := &fakeUnsubscriber{}
	st := NewStore(fu, 10, 10)
	s, _, _ := st.CreateOrTakeover("c1", true)
	s.AddSubscription("sensors/+/temp", packet.QoS1)

	st.Detach("c1")

	assert.Equal(t, []string{"sensors/+/temp/c1"}, fu.calls)
	_, ok := st.Get("c1")
	assert.False(t, ok)
}

func TestDetachPersistentSessionKeepsRecord(t *testing.T) {
	st := NewStore(nil, 10, 10)
	s, _, _ := st.CreateOrTakeover("c1", false)
	s.Attach(&fakeConn{}, "addr")
	st.Detach("c1")

	got, ok := st.Get("c1")
	require.True(t, ok)
	assert.False(t, got.Online())
}

func TestExpireOffline(t *testing.T) {
	fu := &fakeUnsubscriber{}
	st := NewStore(fu, 10, 10)
	s, _, _ := st.CreateOrTakeover("c1", false)
	s.Attach(&fakeConn{}, "addr")
	s.AddSubscription("sensors/+/temp", packet.QoS1)
	st.Detach("c1")

	past := time.Now().Add(-2 * time.Hour)
	s.mu.Lock()
	s.DisconnectedAt = &past
	s.mu.Unlock()

	expired := st.ExpireOffline(time.Now(), time.Hour)
	assert.Equal(t, []string{"c1"}, expired)
	assert.Equal(t, []string{"sensors/+/temp/c1"}, fu.calls)
	_, ok := st.Get("c1")
	assert.False(t, ok)
}

func TestAllocatePacketIDSkipsInflight(t *testing.T) {
	s := NewSession("c1", true, 10, 2)
	id1, err := s.AllocatePacketID()
	require.NoError(t, err)
	s.BeginOutflight(id1, "a", []byte("x"), packet.QoS1, false, AwaitPuback)

	id2, err := s.AllocatePacketID()
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)
}

func TestAllocatePacketIDFullReturnsError(t *testing.T) {
	s := NewSession("c1", true, 10, 1)
	id1, err := s.AllocatePacketID()
	require.NoError(t, err)
	s.BeginOutflight(id1, "a", nil, packet.QoS1, false, AwaitPuback)

	_, err = s.AllocatePacketID()
	assert.Error(t, err)
}

func TestCompleteOutflightFreesPacketID(t *testing.T) {
	s := NewSession("c1", true, 10, 1)
	id, _ := s.AllocatePacketID()
	s.BeginOutflight(id, "a", nil, packet.QoS1, false, AwaitPuback)
	s.CompleteOutflight(id)

	_, ok := s.Outflight(id)
	assert.False(t, ok)
}

func TestInboundQoS2DedupAndRelease(t *testing.T) {
	s := NewSession("c1", true, 10, 10)
	assert.False(t, s.InboundQoS2Seen(5))
	assert.True(t, s.InboundQoS2Seen(5))
	s.ReleaseInboundQoS2(5)
	assert.False(t, s.InboundQoS2Seen(5))
}

func TestOfflineQueueDropsOldestWhenFull(t *testing.T) {
	s := NewSession("c1", false, 2, 10)
	s.EnqueueOffline(PendingMessage{Topic: "a"})
	s.EnqueueOffline(PendingMessage{Topic: "b"})
	s.EnqueueOffline(PendingMessage{Topic: "c"})

	drained := s.DrainOffline()
	require.Len(t, drained, 2)
	assert.Equal(t, "b", drained[0].Topic)
	assert.Equal(t, "c", drained[1].Topic)
}

func TestDueForRetryDropsAfterMaxRetries(t *testing.T) {
	s := NewSession("c1", true, 10, 10)
	id, _ := s.AllocatePacketID()
	s.BeginOutflight(id, "a", nil, packet.QoS1, false, AwaitPuback)

	e, _ := s.Outflight(id)
	e.Attempts = 5
	e.LastSentAt = time.Now().Add(-time.Hour)

	retry, dropped := s.DueForRetry(time.Second, 3)
	assert.Empty(t, retry)
	require.Len(t, dropped, 1)
	assert.Equal(t, id, dropped[0].PacketID)
}

func TestEffectiveQoS(t *testing.T) {
	assert.Equal(t, packet.QoS0, EffectiveQoS(packet.QoS0, packet.QoS2))
	assert.Equal(t, packet.QoS1, EffectiveQoS(packet.QoS2, packet.QoS1))
	assert.Equal(t, packet.QoS2, EffectiveQoS(packet.QoS2, packet.QoS2))
}
