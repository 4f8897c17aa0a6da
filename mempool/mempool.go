// Package mempool implements the concurrent, read-optimized pending
// transaction store (C4), grounded on
// `crates/mempool/src/ev_mempool.rs::EvMempool`, adapted from an
// evmap-backed reader/writer split to an `atomic.Pointer`-swapped
// left-right map.
package mempool

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vrrb-chain/consensus-core/events"
	"github.com/vrrb-chain/consensus-core/metrics"
	"github.com/vrrb-chain/consensus-core/primitives"
)

// Status is a transaction's lifecycle stage within the mempool.
type Status uint8

const (
	StatusPending Status = iota
	StatusReceived
	StatusValidated
	StatusCertified
)

// Transaction is the canonical pending-transaction payload, grounded on
// spec §3's Transaction fields (`vrrb_core::txn::Txn` upstream).
type Transaction struct {
	ID              primitives.TxHashString
	Timestamp       int64
	SenderAddress   primitives.Address
	SenderPubkey    []byte
	ReceiverAddress primitives.Address
	Token           string
	Amount          uint64
	Signature       []byte
	Nonce           uint64
	Fee             uint64
}

// Record pairs a transaction with its mempool bookkeeping, matching the
// `(txn, status, insertion_time)` tuple in spec §4.4.
type Record struct {
	Txn           Transaction
	Status        Status
	InsertionTime int64
}

type snapshot map[primitives.TxHashString]Record

func (s snapshot) clone() snapshot {
	out := make(snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// ReadHandle is a cheap, lock-free point-in-time snapshot for external
// readers (RPC, validators), matching the `factory() -> ReadHandle`
// operation in spec §4.4.
type ReadHandle struct {
	data snapshot
}

// Get returns the record stored under id, if any.
func (h *ReadHandle) Get(id primitives.TxHashString) (Record, bool) {
	r, ok := h.data[id]
	return r, ok
}

// Len reports how many transactions the snapshot holds.
func (h *ReadHandle) Len() int {
	return len(h.data)
}

// Pending returns every record still awaiting validation, ordered FIFO
// by insertion time, which farmers pull from when draining a batch.
func (h *ReadHandle) Pending(max int) []Record {
	var out []Record
	for _, r := range h.data {
		if r.Status == StatusPending || r.Status == StatusReceived {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InsertionTime < out[j].InsertionTime })
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}

// ReadHandleFactory vends ReadHandles without contending with the
// writer.
type ReadHandleFactory struct {
	current *atomic.Pointer[snapshot]
}

// Handle returns a ReadHandle over the most recently published snapshot.
func (f *ReadHandleFactory) Handle() *ReadHandle {
	return &ReadHandle{data: *f.current.Load()}
}

// sizeInBytes is a rough per-transaction wire-size estimate used for the
// backpressure threshold; exact encoding is the gossip layer's concern.
func sizeInBytes(t Transaction) int {
	return len(t.ID) + 8 + len(t.SenderAddress) + len(t.SenderPubkey) + len(t.ReceiverAddress) + len(t.Token) + 8 + len(t.Signature) + 16
}

// Mempool is the single-writer pending transaction store.
type Mempool struct {
	mu      sync.Mutex
	working snapshot
	current atomic.Pointer[snapshot]

	sizeBytes        int
	thresholdBytes   int
	overThreshold    bool

	bus     *events.Bus
	metrics *metrics.Handle
}

// New returns an empty mempool. thresholdBytes is MEMPOOL_THRESHOLD_SIZE
// from spec §4.4; bus/metrics may be nil for standalone use.
func New(thresholdBytes int, bus *events.Bus, m *metrics.Handle) *Mempool {
	mp := &Mempool{
		working:        make(snapshot),
		thresholdBytes: thresholdBytes,
		bus:            bus,
		metrics:        m,
	}
	empty := snapshot{}
	mp.current.Store(&empty)
	return mp
}

// ReadHandleFactory returns a factory vending lock-free reads.
func (m *Mempool) ReadHandleFactory() *ReadHandleFactory {
	return &ReadHandleFactory{current: &m.current}
}

// Insert rejects duplicates and otherwise adds txn as Pending, returning
// the mempool's new size in bytes. Emits TxnAddedToMempool, and
// MempoolSizeThresholdReached exactly once per threshold crossing.
func (m *Mempool) Insert(txn Transaction) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.working[txn.ID]; exists {
		return m.sizeBytes, ErrDuplicateTxn
	}

	m.working[txn.ID] = Record{Txn: txn, Status: StatusPending, InsertionTime: time.Now().UnixNano()}
	m.sizeBytes += sizeInBytes(txn)
	m.publishLocked()

	if m.bus != nil {
		m.bus.Publish(events.TopicTransactions, events.Event{Kind: events.KindTxnAddedToMempool, Payload: txn.ID})
	}
	if m.metrics != nil {
		m.metrics.MempoolSize.Set(float64(m.sizeBytes))
	}

	if m.sizeBytes > m.thresholdBytes && !m.overThreshold {
		m.overThreshold = true
		if m.bus != nil {
			m.bus.Publish(events.TopicTransactions, events.Event{Kind: events.KindMempoolSizeThresholdReached, Payload: txn.ID})
		}
		if m.metrics != nil {
			m.metrics.MempoolBackpressure.Inc()
		}
	}

	return m.sizeBytes, nil
}

// SetStatus transitions an existing record's status, e.g. Pending ->
// Validated once the txn validator has run the four-step pipeline.
func (m *Mempool) SetStatus(id primitives.TxHashString, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.working[id]
	if !ok {
		return ErrTxnNotFound
	}
	rec.Status = status
	m.working[id] = rec
	m.publishLocked()
	return nil
}

// Remove deletes a transaction, e.g. after certification and inclusion
// in a proposal block.
func (m *Mempool) Remove(id primitives.TxHashString) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.working[id]
	if !ok {
		return
	}
	delete(m.working, id)
	m.sizeBytes -= sizeInBytes(rec.Txn)
	if m.sizeBytes < 0 {
		m.sizeBytes = 0
	}
	m.publishLocked()

	if m.metrics != nil {
		m.metrics.MempoolSize.Set(float64(m.sizeBytes))
	}
	if m.overThreshold && m.sizeBytes <= m.thresholdBytes {
		m.overThreshold = false
	}
}

// Drain removes and returns up to n Pending/Received records, FIFO by
// insertion time, matching `drain(n)` in spec §4.4.
func (m *Mempool) Drain(n int) []Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	var candidates []Record
	for _, r := range m.working {
		if r.Status == StatusPending || r.Status == StatusReceived {
			candidates = append(candidates, r)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].InsertionTime < candidates[j].InsertionTime })
	if n > 0 && len(candidates) > n {
		candidates = candidates[:n]
	}

	for _, r := range candidates {
		delete(m.working, r.Txn.ID)
		m.sizeBytes -= sizeInBytes(r.Txn)
	}
	if m.sizeBytes < 0 {
		m.sizeBytes = 0
	}
	m.publishLocked()

	if m.overThreshold && m.sizeBytes <= m.thresholdBytes {
		m.overThreshold = false
	}
	return candidates
}

// SizeInKilobytes reports the mempool's current estimated size.
func (m *Mempool) SizeInKilobytes() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return float64(m.sizeBytes) / 1024.0
}

func (m *Mempool) publishLocked() {
	next := snapshot(m.working.clone())
	m.current.Store(&next)
}
