package state

import (
	"sync"
	"sync/atomic"

	"github.com/vrrb-chain/consensus-core/claim"
	"github.com/vrrb-chain/consensus-core/primitives"
)

type claimSnapshot map[primitives.NodeId]*claim.Claim

func (s claimSnapshot) clone() claimSnapshot {
	out := make(claimSnapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// ClaimReadHandle is a lock-free view over committed claims, grounded on
// `storage/vrrbdb/src/claim_store/claim_store_rh.rs`. This is distinct
// from `claim.ReadHandle`: that one serves the live candidate-claim pool
// consumed by election; this one serves claims that have actually been
// committed into a convergence block's consolidated state.
type ClaimReadHandle struct {
	data claimSnapshot
}

func (h *ClaimReadHandle) Get(id primitives.NodeId) (*claim.Claim, bool) {
	c, ok := h.data[id]
	return c, ok
}

func (h *ClaimReadHandle) Entries() map[primitives.NodeId]*claim.Claim {
	return map[primitives.NodeId]*claim.Claim(h.data.clone())
}

func (h *ClaimReadHandle) Len() int { return len(h.data) }

// ClaimReadHandleFactory vends ClaimReadHandles over the most recently
// published snapshot.
type ClaimReadHandleFactory struct {
	current *atomic.Pointer[claimSnapshot]
}

func (f *ClaimReadHandleFactory) Handle() *ClaimReadHandle {
	return &ClaimReadHandle{data: *f.current.Load()}
}

// ClaimStore is the single-writer committed-claim trie.
type ClaimStore struct {
	mu      sync.Mutex
	working claimSnapshot
	current atomic.Pointer[claimSnapshot]
	trie    *Trie
}

func NewClaimStore() *ClaimStore {
	s := &ClaimStore{working: make(claimSnapshot), trie: NewTrie()}
	empty := claimSnapshot{}
	s.current.Store(&empty)
	return s
}

func (s *ClaimStore) ReadHandleFactory() *ClaimReadHandleFactory {
	return &ClaimReadHandleFactory{current: &s.current}
}

// Insert stages a committed claim into the working set.
func (s *ClaimStore) Insert(id primitives.NodeId, c *claim.Claim) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.working[id] = c
	s.trie.Insert(string(id), []byte(c.Hash))
}

func (s *ClaimStore) Publish() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := claimSnapshot(s.working.clone())
	s.current.Store(&next)
	return s.trie.Root()
}
