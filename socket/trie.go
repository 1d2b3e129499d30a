// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package socket

import "github.com/zlinkio/zlink/pipe"

// trie is a byte-keyed multi-value prefix trie mapping subscription
// prefixes to the set of pipes that subscribed, used by PUB/XPUB to
// match outgoing messages (spec.md §3 "Subscription trie"). SUB filters
// incoming messages with its own flat prefix set (subset), not this trie.
//
// Each node tracks a per-pipe refcount, grounded on
// original_source/core/src/utils/mtrie.hpp: two identical SUBSCRIBE
// prefixes from different pipes are both tracked, and a prefix is only
// removed once its last subscribing pipe cancels it.
type trie struct {
	children map[byte]*trie
	refs     map[*pipe.Pipe]int32
}

func newTrie() *trie {
	return &trie{children: make(map[byte]*trie)}
}

// Add registers prefix as subscribed by p, returning true the first time
// this (prefix, p) pair becomes active (refcount 0 -> 1).
func (t *trie) Add(prefix []byte, p *pipe.Pipe) bool {
	n := t
	for _, b := range prefix {
		c, ok := n.children[b]
		if !ok {
			c = newTrie()
			n.children[b] = c
		}
		n = c
	}
	if n.refs == nil {
		n.refs = make(map[*pipe.Pipe]int32)
	}
	n.refs[p]++
	return n.refs[p] == 1
}

// Remove unregisters prefix for p, returning true if this was the last
// reference (refcount 1 -> 0) and the prefix is now fully removed for p.
func (t *trie) Remove(prefix []byte, p *pipe.Pipe) bool {
	n := t
	nodes := make([]*trie, 0, len(prefix)+1)
	nodes = append(nodes, n)
	for _, b := range prefix {
		c, ok := n.children[b]
		if !ok {
			return false
		}
		nodes = append(nodes, c)
		n = c
	}
	if n.refs == nil || n.refs[p] == 0 {
		return false
	}
	n.refs[p]--
	last := n.refs[p] == 0
	if last {
		delete(n.refs, p)
	}
	return last
}

// RemoveAll drops every subscription held by p, e.g. when its pipe
// terminates.
func (t *trie) RemoveAll(p *pipe.Pipe) {
	var walk func(n *trie)
	walk = func(n *trie) {
		if n.refs != nil {
			delete(n.refs, p)
		}
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(t)
}

// Match calls visit once for every pipe subscribed to a prefix of data,
// deduplicated, implementing the "some s in S is a prefix of data"
// semantics of spec.md §8.
func (t *trie) Match(data []byte, visit func(p *pipe.Pipe)) {
	seen := make(map[*pipe.Pipe]bool)
	n := t
	emit := func(n *trie) {
		for p := range n.refs {
			if !seen[p] {
				seen[p] = true
				visit(p)
			}
		}
	}
	emit(n)
	for _, b := range data {
		c, ok := n.children[b]
		if !ok {
			break
		}
		n = c
		emit(n)
	}
}

// HasSubscribers reports whether the trie currently has any active
// subscription at all.
func (t *trie) HasSubscribers() bool {
	if len(t.refs) > 0 {
		return true
	}
	for _, c := range t.children {
		if c.HasSubscribers() {
			return true
		}
	}
	return false
}
