// Package auth defines the authentication/authorization capability
// interface the broker core depends on; concrete providers (dictionary,
// role-based ACL, callback) live in its subpackages as collaborators.
package auth

// SubscribeDenied is returned by Provider.AuthorizeSubscribe to deny a
// filter, mapped to SUBACK code 0x80 by the router.
const SubscribeDenied = -1

// Provider is the capability interface the connection handler and router
// consult. Concrete implementations decide policy; the core only calls
// through this interface.
type Provider interface {
	// Authenticate reports whether (clientID, username, password) may
	// open a session. password is empty when the CONNECT carried no
	// password flag.
	Authenticate(clientID, username, password string) bool

	// AuthorizePublish reports whether clientID may publish to topic.
	AuthorizePublish(clientID, topic string) bool

	// AuthorizeSubscribe returns the granted QoS (0, 1 or 2) for
	// clientID subscribing to filter, or SubscribeDenied.
	AuthorizeSubscribe(clientID, filter string) int
}

// AllowAll authenticates and authorizes everything; used when no provider
// is configured.
type AllowAll struct{}

func (AllowAll) Authenticate(_, _, _ string) bool   { return true }
func (AllowAll) AuthorizePublish(_, _ string) bool  { return true }
func (AllowAll) AuthorizeSubscribe(_, _ string) int { return 2 }
