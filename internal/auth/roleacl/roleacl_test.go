package roleacl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestProvider() *Provider {
	return New(
		map[string]string{"sensor-1": "sensor", "admin-1": "admin"},
		[]Role{
			{
				Name: "sensor",
				Rules: []Rule{
					{Filter: "sensors/sensor-1/#", Publish: true, Subscribe: true, QoS: 1},
				},
			},
			{
				Name: "admin",
				Rules: []Rule{
					{Filter: "#", Publish: true, Subscribe: true, QoS: 2},
				},
			},
		},
	)
}

func TestAuthorizePublishMatchesOwnFilter(t *testing.T) {
	p := newTestProvider()
	require.True(t, p.AuthorizePublish("sensor-1", "sensors/sensor-1/temp"))
}

func TestAuthorizePublishRejectsOutsideFilter(t *testing.T) {
	p := newTestProvider()
	require.False(t, p.AuthorizePublish("sensor-1", "sensors/sensor-2/temp"))
}

func TestAuthorizePublishRejectsUnknownClient(t *testing.T) {
	p := newTestProvider()
	require.False(t, p.AuthorizePublish("ghost", "anything"))
}

func TestAuthorizeSubscribeGrantsConfiguredQoS(t *testing.T) {
	p := newTestProvider()
	require.Equal(t, 1, p.AuthorizeSubscribe("sensor-1", "sensors/sensor-1/+"))
}

func TestAuthorizeSubscribeDeniesWithoutMatchingRule(t *testing.T) {
	p := newTestProvider()
	require.Equal(t, -1, p.AuthorizeSubscribe("sensor-1", "sensors/sensor-2/+"))
}

func TestAdminHashWildcardGrantsEverything(t *testing.T) {
	p := newTestProvider()
	require.True(t, p.AuthorizePublish("admin-1", "sensors/sensor-1/temp"))
	require.Equal(t, 2, p.AuthorizeSubscribe("admin-1", "$SYS/broker/uptime"))
}

func TestMatchLevelsPlusWildcardRequiresSameDepth(t *testing.T) {
	require.True(t, matchLevels([]string{"a", "+", "c"}, []string{"a", "b", "c"}))
	require.False(t, matchLevels([]string{"a", "+", "c"}, []string{"a", "b", "c", "d"}))
	require.False(t, matchLevels([]string{"a", "b"}, []string{"a"}))
}

func TestMatchLevelsHashMatchesAnyDepth(t *testing.T) {
	require.True(t, matchLevels([]string{"a", "#"}, []string{"a", "b", "c"}))
	require.True(t, matchLevels([]string{"#"}, []string{"a"}))
}
