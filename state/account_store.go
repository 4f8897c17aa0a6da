package state

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/vrrb-chain/consensus-core/block"
	"github.com/vrrb-chain/consensus-core/primitives"
)

type accountSnapshot map[primitives.Address]*block.Account

func (s accountSnapshot) clone() accountSnapshot {
	out := make(accountSnapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// AccountReadHandle is a lock-free, point-in-time view of the account
// trie, grounded on `storage/vrrbdb/src/account_store/account_store_rh.rs`.
type AccountReadHandle struct {
	data accountSnapshot
}

// Balance satisfies txvalidator.AccountLookup.
func (h *AccountReadHandle) Balance(addr primitives.Address) (uint64, bool) {
	a, ok := h.data[addr]
	if !ok {
		return 0, false
	}
	return a.Balance(), true
}

// Get returns the account at addr, if any.
func (h *AccountReadHandle) Get(addr primitives.Address) (*block.Account, bool) {
	a, ok := h.data[addr]
	return a, ok
}

// BatchGet mirrors `account_store_rh.rs::AccountStoreReadHandle::batch_get`.
func (h *AccountReadHandle) BatchGet(addrs []primitives.Address) map[primitives.Address]*block.Account {
	out := make(map[primitives.Address]*block.Account, len(addrs))
	for _, a := range addrs {
		out[a] = h.data[a]
	}
	return out
}

// Entries returns every account currently committed.
func (h *AccountReadHandle) Entries() map[primitives.Address]*block.Account {
	return map[primitives.Address]*block.Account(h.data.clone())
}

// Len reports the number of committed accounts.
func (h *AccountReadHandle) Len() int { return len(h.data) }

// IsEmpty reports whether no accounts have been committed.
func (h *AccountReadHandle) IsEmpty() bool { return len(h.data) == 0 }

// AccountReadHandleFactory vends AccountReadHandles over the most
// recently published snapshot, grounded on
// `account_store_rh.rs::AccountStoreReadHandleFactory`.
type AccountReadHandleFactory struct {
	current *atomic.Pointer[accountSnapshot]
}

func (f *AccountReadHandleFactory) Handle() *AccountReadHandle {
	return &AccountReadHandle{data: *f.current.Load()}
}

// AccountStore is the single-writer account trie: a left-right double
// buffer of `block.Account` plus a content-addressed Merkle `Trie` kept
// in lockstep for root-hash reporting.
type AccountStore struct {
	mu      sync.Mutex
	working accountSnapshot
	current atomic.Pointer[accountSnapshot]
	trie    *Trie
}

func NewAccountStore() *AccountStore {
	s := &AccountStore{working: make(accountSnapshot), trie: NewTrie()}
	empty := accountSnapshot{}
	s.current.Store(&empty)
	return s
}

func (s *AccountStore) ReadHandleFactory() *AccountReadHandleFactory {
	return &AccountReadHandleFactory{current: &s.current}
}

// Apply stages consolidated updates into the working set without
// publishing them to readers.
func (s *AccountStore) Apply(updates map[primitives.Address]*block.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for addr, acc := range updates {
		s.working[addr] = acc
		s.trie.Insert(string(addr), accountBytes(acc))
	}
}

// Publish atomically swaps the working set into visibility and returns
// the new trie root hash, matching "publish all three tries atomically".
func (s *AccountStore) Publish() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := accountSnapshot(s.working.clone())
	s.current.Store(&next)
	return s.trie.Root()
}

func accountBytes(a *block.Account) []byte {
	return []byte(fmt.Sprintf("%d:%d:%d", a.Credits, a.Debits, a.Nonce))
}
