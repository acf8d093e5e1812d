// Package callback adapts plain functions into an auth.Provider, for
// embedding applications that want to supply policy without implementing
// the interface directly.
package callback

// Provider wraps three functions as an auth.Provider. A nil field falls
// back to always-allow for that verb.
type Provider struct {
	AuthenticateFunc        func(clientID, username, password string) bool
	AuthorizePublishFunc    func(clientID, topic string) bool
	AuthorizeSubscribeFunc  func(clientID, filter string) int
}

func (p *Provider) Authenticate(clientID, username, password string) bool {
	if p.AuthenticateFunc == nil {
		return true
	}
	return p.AuthenticateFunc(clientID, username, password)
}

func (p *Provider) AuthorizePublish(clientID, topic string) bool {
	if p.AuthorizePublishFunc == nil {
		return true
	}
	return p.AuthorizePublishFunc(clientID, topic)
}

func (p *Provider) AuthorizeSubscribe(clientID, filter string) int {
	if p.AuthorizeSubscribeFunc == nil {
		return 2
	}
	return p.AuthorizeSubscribeFunc(clientID, filter)
}
