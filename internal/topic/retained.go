package topic

import "github.com/edgebroker/goqttd/internal/packet"

// SetRetained stores or clears the retained message at the exact topic.
// A zero-length payload deletes the entry atomically ([retained message
// invariant]). Insertion order is tracked so the (N+1)-th new entry evicts
// the oldest one once max_retained_messages is reached.
func (t *Tree) SetRetained(topic string, payload []byte, qos packet.QoS) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(payload) == 0 {
		t.deleteRetainedLocked(topic)
		return
	}

	levels := splitLevels(topic)
	n := t.root
	for _, level := range levels {
		child, ok := n.children[level]
		if !ok {
			child = newNode()
			n.children[level] = child
		}
		n = child
	}

	r := &Retained{Topic: topic, Payload: append([]byte(nil), payload...), QoS: qos}
	_, existed := t.retainedSet[topic]
	n.retained = r
	t.retainedSet[topic] = r
	if !existed {
		t.retainedOrder = append(t.retainedOrder, topic)
		if t.maxRetained > 0 && len(t.retainedOrder) > t.maxRetained {
			oldest := t.retainedOrder[0]
			t.retainedOrder = t.retainedOrder[1:]
			t.deleteRetainedLocked(oldest)
		}
	} else {
		t.touchRetainedOrder(topic)
	}
}

func (t *Tree) touchRetainedOrder(topic string) {
	for i, tp := range t.retainedOrder {
		if tp == topic {
			t.retainedOrder = append(t.retainedOrder[:i], t.retainedOrder[i+1:]...)
			break
		}
	}
	t.retainedOrder = append(t.retainedOrder, topic)
}

func (t *Tree) deleteRetainedLocked(topic string) {
	if _, ok := t.retainedSet[topic]; !ok {
		return
	}
	delete(t.retainedSet, topic)
	for i, tp := range t.retainedOrder {
		if tp == topic {
			t.retainedOrder = append(t.retainedOrder[:i], t.retainedOrder[i+1:]...)
			break
		}
	}

	levels := splitLevels(topic)
	path := make([]*node, 0, len(levels)+1)
	path = append(path, t.root)
	n := t.root
	for _, level := range levels {
		child, ok := n.children[level]
		if !ok {
			return
		}
		path = append(path, child)
		n = child
	}
	n.retained = nil
	t.prune(path, levels)
}

// MatchingRetained walks the tree with the same wildcard rules as Match,
// collecting retained messages under filter instead of subscribers. A
// filter whose first level is + or # does not match topics whose first
// level begins with '$'.
func (t *Tree) MatchingRetained(filter string) []*Retained {
	t.mu.RLock()
	defer t.mu.RUnlock()

	levels := splitLevels(filter)
	var result []*Retained

	var walk func(n *node, idx int)
	walk = func(n *node, idx int) {
		if idx == len(levels) {
			if n.retained != nil {
				result = append(result, n.retained)
			}
			return
		}
		level := levels[idx]
		switch level {
		case "+":
			for name, child := range n.children {
				if idx == 0 && len(name) > 0 && name[0] == '$' {
					continue
				}
				walk(child, idx+1)
			}
		case "#":
			if idx > 0 {
				collectAllRetained(n, &result)
				return
			}
			for name, child := range n.children {
				if len(name) > 0 && name[0] == '$' {
					continue
				}
				collectAllRetained(child, &result)
			}
		default:
			if child, ok := n.children[level]; ok {
				walk(child, idx+1)
			}
		}
	}
	walk(t.root, 0)
	return result
}

func collectAllRetained(n *node, out *[]*Retained) {
	if n.retained != nil {
		*out = append(*out, n.retained)
	}
	for _, child := range n.children {
		collectAllRetained(child, out)
	}
	if n.plus != nil {
		collectAllRetained(n.plus, out)
	}
	if n.hash != nil {
		collectAllRetained(n.hash, out)
	}
}

// RetainedCount returns the number of live retained entries, for the
// $SYS/broker/messages/retained/count stat.
func (t *Tree) RetainedCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.retainedSet)
}

// EvictOldestRetained discards up to n of the oldest retained messages,
// for the memory scanner's low-memory eviction pass.
func (t *Tree) EvictOldestRetained(n int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	evicted := 0
	for evicted < n && len(t.retainedOrder) > 0 {
		oldest := t.retainedOrder[0]
		t.retainedOrder = t.retainedOrder[1:]
		t.deleteRetainedLocked(oldest)
		evicted++
	}
	return evicted
}
