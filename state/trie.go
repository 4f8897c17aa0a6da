// Package state implements the three versioned Merkle tries (accounts,
// claims, transactions) and the state commit engine (C7), grounded on
// `storage/lr_trie/src/lr_trie.rs` and `storage/vrrbdb/src/lib.rs`.
package state

import (
	"sort"

	"github.com/vrrb-chain/consensus-core/cryptoutil"
)

// Trie is a mutable, content-addressed Merkle tree over sorted
// key/value leaves, hashed pairwise with Keccak256. This stands in for
// `lr_trie.rs`'s `keccak_hash::H256`-rooted trie without binding to
// go-ethereum's `trie.Trie`/`ethdb` stack (see the Open Question
// decision in the grounding ledger).
type Trie struct {
	entries map[string][]byte
}

// NewTrie returns an empty trie.
func NewTrie() *Trie {
	return &Trie{entries: make(map[string][]byte)}
}

// Clone returns a deep copy suitable for staging writer-side mutations
// without disturbing a published snapshot.
func (t *Trie) Clone() *Trie {
	out := make(map[string][]byte, len(t.entries))
	for k, v := range t.entries {
		cp := make([]byte, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return &Trie{entries: out}
}

// Get returns the value stored under key, if present.
func (t *Trie) Get(key string) ([]byte, bool) {
	v, ok := t.entries[key]
	return v, ok
}

// Insert sets key to value, matching the trie's `Operation::Add`.
func (t *Trie) Insert(key string, value []byte) {
	t.entries[key] = value
}

// Remove deletes key, matching `Operation::Remove`.
func (t *Trie) Remove(key string) {
	delete(t.entries, key)
}

// Len reports the number of leaves currently in the trie.
func (t *Trie) Len() int {
	return len(t.entries)
}

// leafHash hashes a single key/value pair into a Merkle leaf.
func leafHash(key string, value []byte) []byte {
	buf := make([]byte, 0, len(key)+len(value)+1)
	buf = append(buf, []byte(key)...)
	buf = append(buf, 0)
	buf = append(buf, value...)
	digest := cryptoutil.Keccak256(buf)
	return digest[:]
}

// Root computes the trie's Merkle root: leaves are sorted by key (for
// determinism independent of insertion order, matching spec §8's "for
// all batches applied in any order that preserves DAG edges, the
// resulting root hash is identical"), hashed individually, then combined
// pairwise up the tree. An odd node at any level is promoted unchanged
// to the next level.
func (t *Trie) Root() []byte {
	if len(t.entries) == 0 {
		digest := cryptoutil.Keccak256(nil)
		return digest[:]
	}

	keys := make([]string, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	level := make([][]byte, 0, len(keys))
	for _, k := range keys {
		level = append(level, leafHash(k, t.entries[k]))
	}

	for len(level) > 1 {
		next := make([][]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			pair := append(append([]byte{}, level[i]...), level[i+1]...)
			digest := cryptoutil.Keccak256(pair)
			next = append(next, digest[:])
		}
		level = next
	}
	return level[0]
}
