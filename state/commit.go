package state

import (
	"errors"
	"fmt"
	"sync"

	"github.com/vrrb-chain/consensus-core/block"
	"github.com/vrrb-chain/consensus-core/claim"
	"github.com/vrrb-chain/consensus-core/dag"
	"github.com/vrrb-chain/consensus-core/events"
	"github.com/vrrb-chain/consensus-core/metrics"
	"github.com/vrrb-chain/consensus-core/primitives"
	"github.com/vrrb-chain/consensus-core/txvalidator"
)

// ErrStateCommitConflict is returned when consolidated updates would
// drive an account's debits above its credits, matching spec §7's
// StateCommitConflict error kind.
var ErrStateCommitConflict = errors.New("state: commit would violate no-double-spend invariant")

type delta struct {
	credit   uint64
	debit    uint64
	nonce    uint64
	sent     map[primitives.TxHashString]struct{}
	received map[primitives.TxHashString]struct{}
}

func newDelta() *delta {
	return &delta{
		sent:     make(map[primitives.TxHashString]struct{}),
		received: make(map[primitives.TxHashString]struct{}),
	}
}

// RootHashes bundles the three tries' post-commit roots.
type RootHashes struct {
	Accounts     []byte
	Claims       []byte
	Transactions []byte
}

// Engine is the state commit engine (C7): it walks the DAG from a
// certified convergence block back to the last committed head,
// consolidates every certified transaction into per-address updates,
// and publishes the account/claim/transaction tries atomically.
// Grounded on spec §4.7's five-step commit protocol.
type Engine struct {
	mu sync.Mutex

	accounts *AccountStore
	claims   *ClaimStore
	txns     *TransactionStore
	dag      *dag.DAG
	bus      *events.Bus
	metrics  *metrics.Handle

	lastCommitted block.RefHash
}

// NewEngine returns a commit engine rooted at genesisRef, the DAG's
// initial committed head.
func NewEngine(accounts *AccountStore, claims *ClaimStore, txns *TransactionStore, d *dag.DAG, bus *events.Bus, m *metrics.Handle, genesisRef block.RefHash) *Engine {
	return &Engine{
		accounts:      accounts,
		claims:        claims,
		txns:          txns,
		dag:           d,
		bus:           bus,
		metrics:       m,
		lastCommitted: genesisRef,
	}
}

// Commit applies every certified transaction reachable between the last
// committed head and certifiedRef, then advances the committed head to
// certifiedRef. Two concurrent calls are serialized by mu, matching
// spec §5's "the state commit engine serializes all commits: two
// convergence blocks for the same parent can never both be applied."
func (e *Engine) Commit(certifiedRef block.RefHash) (RootHashes, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	proposals, err := e.dag.AncestorsSince(certifiedRef, e.lastCommitted)
	if err != nil {
		return RootHashes{}, fmt.Errorf("state: walk dag: %w", err)
	}

	deltas := make(map[primitives.Address]*delta)

	// pendingTxns/pendingClaims only get written into their stores' working
	// sets once every address in this batch has cleared the debits<=credits
	// check below; staging them here keeps a rejected commit from leaking
	// into TransactionStore/ClaimStore ahead of the conflict that rejects it.
	var pendingTxns []*txvalidator.QuorumCertifiedTxn
	var pendingClaims []struct {
		id primitives.NodeId
		c  *claim.Claim
	}

	handle := e.accounts.ReadHandleFactory().Handle()

	for _, p := range proposals {
		for i := range p.Txns {
			qct := &p.Txns[i]
			txn := qct.Txn

			sender := deltas[txn.SenderAddress]
			if sender == nil {
				sender = newDelta()
				deltas[txn.SenderAddress] = sender
			}
			sender.debit += txn.Amount + txn.Fee
			if txn.Nonce+1 > sender.nonce {
				sender.nonce = txn.Nonce + 1
			}
			sender.sent[txn.ID] = struct{}{}

			receiver := deltas[txn.ReceiverAddress]
			if receiver == nil {
				receiver = newDelta()
				deltas[txn.ReceiverAddress] = receiver
			}
			receiver.credit += txn.Amount
			receiver.received[txn.ID] = struct{}{}

			pendingTxns = append(pendingTxns, qct)
		}
		for _, c := range p.NewClaims {
			id := primitives.NodeId(c.Address.String())
			pendingClaims = append(pendingClaims, struct {
				id primitives.NodeId
				c  *claim.Claim
			}{id, c})
		}
	}

	updates := make(map[primitives.Address]*block.Account, len(deltas))
	var createdAccounts []primitives.Address

	for addr, d := range deltas {
		existing, existed := handle.Get(addr)

		acc := &block.Account{
			Address:         addr,
			SentDigests:     make(map[primitives.TxHashString]struct{}),
			ReceivedDigests: make(map[primitives.TxHashString]struct{}),
			StakedDigests:   make(map[primitives.TxHashString]struct{}),
		}
		if existed {
			acc.Credits = existing.Credits
			acc.Debits = existing.Debits
			acc.Nonce = existing.Nonce
			acc.CodeStorage = existing.CodeStorage
			for k := range existing.SentDigests {
				acc.SentDigests[k] = struct{}{}
			}
			for k := range existing.ReceivedDigests {
				acc.ReceivedDigests[k] = struct{}{}
			}
			for k := range existing.StakedDigests {
				acc.StakedDigests[k] = struct{}{}
			}
		} else {
			createdAccounts = append(createdAccounts, addr)
		}

		acc.Credits += d.credit
		acc.Debits += d.debit
		if d.nonce > acc.Nonce {
			acc.Nonce = d.nonce
		}
		for k := range d.sent {
			acc.SentDigests[k] = struct{}{}
		}
		for k := range d.received {
			acc.ReceivedDigests[k] = struct{}{}
		}

		if acc.Debits > acc.Credits {
			if e.metrics != nil {
				e.metrics.StateCommitConflicts.Inc()
			}
			return RootHashes{}, fmt.Errorf("%w: address %s", ErrStateCommitConflict, addr)
		}

		updates[addr] = acc
	}

	for _, qct := range pendingTxns {
		e.txns.Insert(qct)
	}
	for _, pc := range pendingClaims {
		e.claims.Insert(pc.id, pc.c)
	}

	e.accounts.Apply(updates)

	roots := RootHashes{
		Accounts:     e.accounts.Publish(),
		Claims:       e.claims.Publish(),
		Transactions: e.txns.Publish(),
	}

	e.lastCommitted = certifiedRef

	if e.bus != nil {
		createdSet := make(map[primitives.Address]struct{}, len(createdAccounts))
		for _, a := range createdAccounts {
			createdSet[a] = struct{}{}
			e.bus.Publish(events.TopicBlocks, events.Event{Kind: events.KindAccountCreated, Payload: updates[a]})
		}
		for addr, acc := range updates {
			if _, created := createdSet[addr]; created {
				continue
			}
			e.bus.Publish(events.TopicBlocks, events.Event{Kind: events.KindUpdateAccount, Payload: acc})
		}
	}

	if e.metrics != nil {
		e.metrics.StateCommits.Inc()
	}

	return roots, nil
}

// LastCommitted returns the ref hash of the most recently committed
// convergence block.
func (e *Engine) LastCommitted() block.RefHash {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastCommitted
}
