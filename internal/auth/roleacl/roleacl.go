// Package roleacl grants publish/subscribe access by matching topics
// against per-role filter lists, with the +/# wildcard rules of the
// broker's topic tree in a matcher of its own (enriching the teacher's auth
// package, which had no topic-scoped policy at all). Unlike the topic tree,
// it gives '$'-prefixed topics no special treatment: a "#" rule covers them.
package roleacl

import "strings"

// Rule grants access to topics matching Filter for one or more verbs.
type Rule struct {
	Filter    string
	Publish   bool
	Subscribe bool
	QoS       int // granted QoS when Subscribe is true
}

// Role is a named set of rules.
type Role struct {
	Name  string
	Rules []Rule
}

// Provider authorizes clients by role membership. Authenticate always
// succeeds: this provider performs no credential check, and nothing in this
// package combines it with one that does (e.g. dictionary).
type Provider struct {
	clientRoles map[string]string // clientID -> role name
	roles       map[string]Role
}

// New builds a Provider from a clientID->role assignment and a role table.
func New(clientRoles map[string]string, roles []Role) *Provider {
	p := &Provider{
		clientRoles: clientRoles,
		roles:       make(map[string]Role, len(roles)),
	}
	for _, r := range roles {
		p.roles[r.Name] = r
	}
	return p
}

func (p *Provider) Authenticate(_, _, _ string) bool { return true }

func (p *Provider) AuthorizePublish(clientID, topic string) bool {
	role, ok := p.roleFor(clientID)
	if !ok {
		return false
	}
	for _, rule := range role.Rules {
		if rule.Publish && matches(rule.Filter, topic) {
			return true
		}
	}
	return false
}

func (p *Provider) AuthorizeSubscribe(clientID, filter string) int {
	role, ok := p.roleFor(clientID)
	if !ok {
		return -1
	}
	granted := -1
	for _, rule := range role.Rules {
		if rule.Subscribe && matches(rule.Filter, filter) {
			if rule.QoS > granted {
				granted = rule.QoS
			}
		}
	}
	return granted
}

func (p *Provider) roleFor(clientID string) (Role, bool) {
	name, ok := p.clientRoles[clientID]
	if !ok {
		return Role{}, false
	}
	role, ok := p.roles[name]
	return role, ok
}

// matches applies the +/# wildcard rules of the topic tree to an ACL rule
// filter (which may itself use wildcards) and a concrete or filter-shaped
// topic. '$'-prefixed topics are not isolated: "#" matches them too.
func matches(rulePattern, topic string) bool {
	ruleLevels := strings.Split(rulePattern, "/")
	topicLevels := strings.Split(topic, "/")
	return matchLevels(ruleLevels, topicLevels)
}

func matchLevels(rule, topic []string) bool {
	for i, level := range rule {
		if level == "#" {
			return true
		}
		if i >= len(topic) {
			return false
		}
		if level != "+" && level != topic[i] {
			return false
		}
	}
	return len(rule) == len(topic)
}
