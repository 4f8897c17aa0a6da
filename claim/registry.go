package claim

import (
	"sync"
	"sync/atomic"

	"github.com/vrrb-chain/consensus-core/primitives"
)

// snapshot is the immutable map backing one side of the left-right split.
type snapshot map[primitives.NodeId]*Claim

func (s snapshot) clone() snapshot {
	out := make(snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// ReadHandle is a point-in-time, lock-free view over the claim registry,
// grounded on `claim_store_rh.rs::ClaimStoreReadHandle`.
type ReadHandle struct {
	data snapshot
}

// Get returns the claim registered under id, if any.
func (h *ReadHandle) Get(id primitives.NodeId) (*Claim, bool) {
	c, ok := h.data[id]
	return c, ok
}

// BatchGet returns a result map for every requested id, mirroring
// `batch_get`'s HashMap-of-Option shape via a present/absent map entry.
func (h *ReadHandle) BatchGet(ids []primitives.NodeId) map[primitives.NodeId]*Claim {
	out := make(map[primitives.NodeId]*Claim, len(ids))
	for _, id := range ids {
		if c, ok := h.data[id]; ok {
			out[id] = c
		} else {
			out[id] = nil
		}
	}
	return out
}

// Entries returns every claim currently registered.
func (h *ReadHandle) Entries() map[primitives.NodeId]*Claim {
	out := make(map[primitives.NodeId]*Claim, len(h.data))
	for k, v := range h.data {
		out[k] = v
	}
	return out
}

// Len reports the number of registered claims.
func (h *ReadHandle) Len() int {
	return len(h.data)
}

// IsEmpty reports whether the registry currently has no claims.
func (h *ReadHandle) IsEmpty() bool {
	return len(h.data) == 0
}

// ReadHandleFactory vends read-only snapshots of the registry without
// contending with the writer, mirroring
// `claim_store_rh.rs::ClaimStoreReadHandleFactory`.
type ReadHandleFactory struct {
	current *atomic.Pointer[snapshot]
}

// Handle returns a ReadHandle over the most recently published snapshot.
func (f *ReadHandleFactory) Handle() *ReadHandle {
	return &ReadHandle{data: *f.current.Load()}
}

// Registry is the single-writer claim store. Writes mutate a private
// working copy; Publish atomically swaps it into visibility for readers,
// the left-right discipline used throughout this codebase for
// reader/writer split state (`lr_trie`, mempool, state tries).
type Registry struct {
	mu        sync.Mutex
	working   snapshot
	current   atomic.Pointer[snapshot]
	validator *Validator
}

// NewRegistry returns an empty claim registry.
func NewRegistry(validator *Validator) *Registry {
	r := &Registry{
		working:   make(snapshot),
		validator: validator,
	}
	empty := snapshot{}
	r.current.Store(&empty)
	return r
}

// ReadHandleFactory returns a factory vending lock-free reads.
func (r *Registry) ReadHandleFactory() *ReadHandleFactory {
	return &ReadHandleFactory{current: &r.current}
}

// Insert verifies c's hash and stake certificates and, if valid, adds it
// to the working set. Callers must invoke Publish to make the insert
// visible to readers.
func (r *Registry) Insert(id primitives.NodeId, c *Claim) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.validator.VerifyHash(c); err != nil {
		return err
	}
	if err := r.validator.Validate(c); err != nil {
		return err
	}

	r.working[id] = c
	return nil
}

// Remove deletes a claim from the working set, e.g. after a slash drives
// eligibility to None permanently.
func (r *Registry) Remove(id primitives.NodeId) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.working, id)
}

// Publish atomically swaps the working set into the read-visible
// snapshot, matching the `publish()` half of the Absorb<Operation>
// pattern used by the left-right stores elsewhere in this module.
func (r *Registry) Publish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := snapshot(r.working.clone())
	r.current.Store(&next)
}
