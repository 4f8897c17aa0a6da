package state

import (
	"sync"
	"sync/atomic"

	"github.com/vrrb-chain/consensus-core/mempool"
	"github.com/vrrb-chain/consensus-core/primitives"
	"github.com/vrrb-chain/consensus-core/txvalidator"
)

type txnSnapshot map[primitives.TxHashString]*txvalidator.QuorumCertifiedTxn

func (s txnSnapshot) clone() txnSnapshot {
	out := make(txnSnapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// TransactionReadHandle is a lock-free view over committed,
// certificate-carrying transactions, grounded on
// `storage/vrrbdb/src/transaction_store/transaction_store_rh.rs`.
type TransactionReadHandle struct {
	data txnSnapshot
}

func (h *TransactionReadHandle) Get(id primitives.TxHashString) (*txvalidator.QuorumCertifiedTxn, bool) {
	t, ok := h.data[id]
	return t, ok
}

func (h *TransactionReadHandle) Entries() map[primitives.TxHashString]*txvalidator.QuorumCertifiedTxn {
	return map[primitives.TxHashString]*txvalidator.QuorumCertifiedTxn(h.data.clone())
}

func (h *TransactionReadHandle) Len() int { return len(h.data) }

// TransactionReadHandleFactory vends TransactionReadHandles over the
// most recently published snapshot.
type TransactionReadHandleFactory struct {
	current *atomic.Pointer[txnSnapshot]
}

func (f *TransactionReadHandleFactory) Handle() *TransactionReadHandle {
	return &TransactionReadHandle{data: *f.current.Load()}
}

// TransactionStore is the single-writer committed-transaction trie.
type TransactionStore struct {
	mu      sync.Mutex
	working txnSnapshot
	current atomic.Pointer[txnSnapshot]
	trie    *Trie
}

func NewTransactionStore() *TransactionStore {
	s := &TransactionStore{working: make(txnSnapshot), trie: NewTrie()}
	empty := txnSnapshot{}
	s.current.Store(&empty)
	return s
}

func (s *TransactionStore) ReadHandleFactory() *TransactionReadHandleFactory {
	return &TransactionReadHandleFactory{current: &s.current}
}

func (s *TransactionStore) Insert(qct *txvalidator.QuorumCertifiedTxn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.working[qct.Txn.ID] = qct
	s.trie.Insert(string(qct.Txn.ID), txnBytes(qct.Txn))
}

func (s *TransactionStore) Publish() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := txnSnapshot(s.working.clone())
	s.current.Store(&next)
	return s.trie.Root()
}

func txnBytes(t mempool.Transaction) []byte {
	return []byte(t.SenderAddress + ":" + t.ReceiverAddress)
}
