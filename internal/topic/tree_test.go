package topic

import (
	"testing"

	"github.com/edgebroker/goqttd/internal/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchPlusWildcard(t *testing.T) {
	tr := New(0, 0)
	require.NoError(t, tr.Subscribe("sensors/+/temp", "A", packet.QoS1))

	got := tr.Match("sensors/room1/temp")
	assert.Equal(t, map[string]packet.QoS{"A": packet.QoS1}, got)

	assert.Empty(t, tr.Match("sensors/room1/data/temp"))
}

func TestMatchHashWildcard(t *testing.T) {
	tr := New(0, 0)
	require.NoError(t, tr.Subscribe("sensors/#", "A", packet.QoS0))

	assert.Contains(t, tr.Match("sensors/room1/temp"), "A")
	assert.Contains(t, tr.Match("sensors"), "A")
}

func TestMatchTakesMaxQoSOnCollision(t *testing.T) {
	tr := New(0, 0)
	require.NoError(t, tr.Subscribe("a/b", "A", packet.QoS0))
	require.NoError(t, tr.Subscribe("a/+", "A", packet.QoS2))

	got := tr.Match("a/b")
	assert.Equal(t, packet.QoS2, got["A"])
}

func TestSysTopicIsolatedFromWildcards(t *testing.T) {
	tr := New(0, 0)
	require.NoError(t, tr.Subscribe("#", "A", packet.QoS0))
	require.NoError(t, tr.Subscribe("+/version", "B", packet.QoS0))
	require.NoError(t, tr.Subscribe("$SYS/broker/version", "C", packet.QoS0))

	got := tr.Match("$SYS/broker/version")
	assert.NotContains(t, got, "A")
	assert.NotContains(t, got, "B")
	assert.Contains(t, got, "C")
}

func TestUnsubscribePrunesEmptyBranches(t *testing.T) {
	tr := New(0, 0)
	require.NoError(t, tr.Subscribe("a/b/c", "A", packet.QoS0))
	tr.Unsubscribe("a/b/c", "A")

	assert.Empty(t, tr.root.children)
}

func TestSubscribeEnforcesPerClientLimit(t *testing.T) {
	tr := New(1, 0)
	require.NoError(t, tr.Subscribe("a", "A", packet.QoS0))
	err := tr.Subscribe("b", "A", packet.QoS0)
	assert.Error(t, err)

	// re-subscribing the same filter never counts as a new one.
	require.NoError(t, tr.Subscribe("a", "A", packet.QoS1))
}

func TestRetainedExactMatchAndEmptyPayloadDeletes(t *testing.T) {
	tr := New(0, 0)
	tr.SetRetained("a/b", []byte("22.5"), packet.QoS1)

	got := tr.MatchingRetained("a/+")
	require.Len(t, got, 1)
	assert.Equal(t, "a/b", got[0].Topic)

	tr.SetRetained("a/b", nil, packet.QoS0)
	assert.Empty(t, tr.MatchingRetained("a/+"))
}

func TestRetainedLRUEviction(t *testing.T) {
	tr := New(0, 2)
	tr.SetRetained("t1", []byte("1"), packet.QoS0)
	tr.SetRetained("t2", []byte("2"), packet.QoS0)
	tr.SetRetained("t3", []byte("3"), packet.QoS0)

	assert.Equal(t, 2, tr.RetainedCount())
	assert.Empty(t, tr.MatchingRetained("t1"))
	assert.NotEmpty(t, tr.MatchingRetained("t3"))
}

func TestSubscriptionCountAggregate(t *testing.T) {
	tr := New(0, 0)
	require.NoError(t, tr.Subscribe("a", "A", packet.QoS0))
	require.NoError(t, tr.Subscribe("b", "A", packet.QoS0))
	require.NoError(t, tr.Subscribe("a", "B", packet.QoS0))

	assert.Equal(t, 3, tr.SubscriptionCount())
}
