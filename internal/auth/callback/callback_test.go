package callback

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNilFuncsFallBackToAllowAll(t *testing.T) {
	p := &Provider{}
	require.True(t, p.Authenticate("c", "u", "p"))
	require.True(t, p.AuthorizePublish("c", "a/b"))
	require.Equal(t, 2, p.AuthorizeSubscribe("c", "a/b"))
}

func TestConfiguredFuncsAreUsed(t *testing.T) {
	p := &Provider{
		AuthenticateFunc:       func(_, username, password string) bool { return username == "alice" && password == "secret" },
		AuthorizePublishFunc:   func(clientID, _ string) bool { return clientID == "trusted" },
		AuthorizeSubscribeFunc: func(_, filter string) int { return len(filter) },
	}

	require.True(t, p.Authenticate("c", "alice", "secret"))
	require.False(t, p.Authenticate("c", "alice", "wrong"))
	require.True(t, p.AuthorizePublish("trusted", "a/b"))
	require.False(t, p.AuthorizePublish("stranger", "a/b"))
	require.Equal(t, 3, p.AuthorizeSubscribe("c", "a/b"))
}
