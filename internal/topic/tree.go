// Package topic implements the wildcard-aware subscription trie and the
// retained-message store, grounded on the (unfinished) SubscriptionTree in
// Pyr33x-goqtt's internal/broker/subscription.go.
package topic

import (
	"strings"
	"sync"

	"github.com/edgebroker/goqttd/internal/packet"
	"github.com/edgebroker/goqttd/internal/xerror"
)

// node is one level of the trie.
type node struct {
	children map[string]*node
	plus     *node
	hash     *node

	subscribers map[string]packet.QoS // client id -> granted qos
	retained    *Retained
}

func newNode() *node {
	return &node{children: make(map[string]*node)}
}

// Retained is a single stored retained message.
type Retained struct {
	Topic   string
	Payload []byte
	QoS     packet.QoS
}

// Tree is the subscription trie plus the retained-message index. It is
// single-owner from the connection handler / router per the broker's
// cooperative scheduling model, but the mutex keeps background tasks
// (stats publisher walking subscription counts) safe to call concurrently.
type Tree struct {
	mu   sync.RWMutex
	root *node

	maxSubsPerClient int
	maxRetained      int

	// clientSubCount tracks live subscriptions per client id, for the
	// max_subscriptions_per_client bound.
	clientSubCount map[string]int

	// retainedOrder tracks insertion order for LRU eviction; the front of
	// the slice is the oldest entry.
	retainedOrder []string
	retainedSet   map[string]*Retained
}

// New constructs an empty Tree. maxSubsPerClient and maxRetained are the
// max_subscriptions_per_client and max_retained_messages config bounds.
func New(maxSubsPerClient, maxRetained int) *Tree {
	return &Tree{
		root:             newNode(),
		maxSubsPerClient: maxSubsPerClient,
		maxRetained:      maxRetained,
		clientSubCount:   make(map[string]int),
		retainedSet:      make(map[string]*Retained),
	}
}

func splitLevels(topic string) []string {
	return strings.Split(topic, "/")
}

// Subscribe inserts or upgrades/downgrades filter -> (clientID, qos). It
// returns xerror.ErrTooManySubs if the client is at its subscription limit
// and does not already hold a subscription on this exact filter.
func (t *Tree) Subscribe(filter, clientID string, qos packet.QoS) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	levels := splitLevels(filter)
	n := t.root
	for _, level := range levels {
		switch level {
		case "+":
			if n.plus == nil {
				n.plus = newNode()
			}
			n = n.plus
		case "#":
			if n.hash == nil {
				n.hash = newNode()
			}
			n = n.hash
		default:
			child, ok := n.children[level]
			if !ok {
				child = newNode()
				n.children[level] = child
			}
			n = child
		}
	}

	if n.subscribers == nil {
		n.subscribers = make(map[string]packet.QoS)
	}
	_, already := n.subscribers[clientID]
	if !already {
		if t.maxSubsPerClient > 0 && t.clientSubCount[clientID] >= t.maxSubsPerClient {
			return &xerror.Err{Context: "topic tree subscribe", Message: xerror.ErrTooManySubs}
		}
		t.clientSubCount[clientID]++
	}
	n.subscribers[clientID] = qos
	return nil
}

// Unsubscribe removes clientID's entry at filter and prunes empty branches
// bottom-up.
func (t *Tree) Unsubscribe(filter, clientID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	levels := splitLevels(filter)
	path := make([]*node, 0, len(levels)+1)
	path = append(path, t.root)

	n := t.root
	for _, level := range levels {
		var next *node
		switch level {
		case "+":
			next = n.plus
		case "#":
			next = n.hash
		default:
			next = n.children[level]
		}
		if next == nil {
			return
		}
		path = append(path, next)
		n = next
	}

	if n.subscribers == nil {
		return
	}
	if _, ok := n.subscribers[clientID]; !ok {
		return
	}
	delete(n.subscribers, clientID)
	if t.clientSubCount[clientID] > 0 {
		t.clientSubCount[clientID]--
		if t.clientSubCount[clientID] == 0 {
			delete(t.clientSubCount, clientID)
		}
	}

	t.prune(path, levels)
}

// prune removes empty nodes bottom-up along path, where path[i+1] is the
// child of path[i] reached via levels[i].
func (t *Tree) prune(path []*node, levels []string) {
	for i := len(path) - 1; i > 0; i-- {
		child := path[i]
		if !child.empty() {
			return
		}
		parent := path[i-1]
		switch levels[i-1] {
		case "+":
			parent.plus = nil
		case "#":
			parent.hash = nil
		default:
			delete(parent.children, levels[i-1])
		}
	}
}

func (n *node) empty() bool {
	return len(n.subscribers) == 0 && n.retained == nil &&
		len(n.children) == 0 && n.plus == nil && n.hash == nil
}

// Match returns every subscribed client and its granted QoS for topic,
// taking the maximum granted QoS when multiple filters from the same client
// match. If topic's first level begins with '$', only literal matches at
// the root level are considered ([MQTT system-topic isolation]).
func (t *Tree) Match(topic string) map[string]packet.QoS {
	t.mu.RLock()
	defer t.mu.RUnlock()

	levels := splitLevels(topic)
	result := make(map[string]packet.QoS)
	sysTopic := len(levels) > 0 && strings.HasPrefix(levels[0], "$")

	var walk func(n *node, idx int, allowWildcardHere bool)
	walk = func(n *node, idx int, allowWildcardHere bool) {
		if n.hash != nil && allowWildcardHere {
			collect(result, n.hash.subscribers)
		}
		if idx == len(levels) {
			collect(result, n.subscribers)
			return
		}
		level := levels[idx]
		if child, ok := n.children[level]; ok {
			walk(child, idx+1, true)
		}
		if n.plus != nil && allowWildcardHere {
			walk(n.plus, idx+1, true)
		}
	}
	walk(t.root, 0, !sysTopic)
	return result
}

func collect(result map[string]packet.QoS, subs map[string]packet.QoS) {
	for client, qos := range subs {
		if existing, ok := result[client]; !ok || qos > existing {
			result[client] = qos
		}
	}
}

// SubscriptionCount returns the total number of live subscriptions across
// all clients, for the $SYS/broker/subscriptions/count stat.
func (t *Tree) SubscriptionCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	total := 0
	for _, n := range t.clientSubCount {
		total += n
	}
	return total
}
