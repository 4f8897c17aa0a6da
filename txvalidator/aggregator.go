package txvalidator

import (
	"fmt"
	"sync"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/vrrb-chain/consensus-core/cryptoutil"
	"github.com/vrrb-chain/consensus-core/events"
	"github.com/vrrb-chain/consensus-core/mempool"
	"github.com/vrrb-chain/consensus-core/primitives"
)

// Vote is a farmer's partial signature over a transaction's canonical
// bytes, matching spec §3's Vote type.
type Vote struct {
	FarmerID     primitives.NodeId
	FarmerIdx    uint16
	Txn          mempool.Transaction
	PartialShare secp256k1.ModNScalar
	Threshold    int
}

// QuorumCertifiedTxn is a transaction plus its aggregated threshold
// certificate, matching spec §3.
type QuorumCertifiedTxn struct {
	Txn               mempool.Transaction
	VoteReceipts      []Vote
	CombinedSignature secp256k1.ModNScalar
	QuorumPubkey      *secp256k1.PublicKey
}

type voteSet struct {
	votes map[uint16]Vote
}

// Aggregator collects per-txn farmer votes and, once a txn reaches
// threshold_config.threshold+1 distinct valid partials, combines them
// into a QuorumCertifiedTxn, matching spec §4.5's farmer vote protocol.
// Late votes (after certification) are dropped silently, per spec's "no
// negative voting" rule. A vote whose addition yields a combined value
// that does not verify against the quorum key is discarded and reported
// as an error; nothing is certified for it.
type Aggregator struct {
	mu        sync.Mutex
	threshold int
	pending   map[primitives.TxHashString]*voteSet
	certified map[primitives.TxHashString]*QuorumCertifiedTxn

	quorumPubkey *secp256k1.PublicKey
	bus          *events.Bus
}

// NewAggregator returns an Aggregator requiring threshold+1 distinct
// votes before certifying a transaction, verifying combined signatures
// against quorumPubkey.
func NewAggregator(threshold int, quorumPubkey *secp256k1.PublicKey, bus *events.Bus) *Aggregator {
	return &Aggregator{
		threshold:    threshold,
		pending:      make(map[primitives.TxHashString]*voteSet),
		certified:    make(map[primitives.TxHashString]*QuorumCertifiedTxn),
		quorumPubkey: quorumPubkey,
		bus:          bus,
	}
}

// AddVote records a farmer's vote for a transaction. Once the required
// number of distinct votes is reached, the votes are combined into a
// QuorumCertifiedTxn and TransactionCertificateCreated is published.
// Votes for an already-certified transaction are dropped.
func (a *Aggregator) AddVote(vote Vote) (*QuorumCertifiedTxn, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, done := a.certified[vote.Txn.ID]; done {
		return nil, nil
	}

	set, ok := a.pending[vote.Txn.ID]
	if !ok {
		set = &voteSet{votes: make(map[uint16]Vote)}
		a.pending[vote.Txn.ID] = set
	}
	set.votes[vote.FarmerIdx] = vote

	if len(set.votes) < a.threshold+1 {
		return nil, nil
	}

	indices := make([]uint32, 0, len(set.votes))
	shares := make([]secp256k1.ModNScalar, 0, len(set.votes))
	receipts := make([]Vote, 0, len(set.votes))
	for idx, v := range set.votes {
		indices = append(indices, uint32(idx)+1)
		shares = append(shares, v.PartialShare)
		receipts = append(receipts, v)
	}

	combined, err := cryptoutil.CombineShares(indices, shares)
	if err != nil {
		return nil, err
	}
	if a.quorumPubkey != nil && !cryptoutil.VerifyGroupSecret(combined, a.quorumPubkey) {
		delete(set.votes, vote.FarmerIdx)
		return nil, fmt.Errorf("%w: combined votes for %s do not verify against the farmer quorum key", ErrTxnSignatureIncorrect, vote.Txn.ID)
	}

	qct := &QuorumCertifiedTxn{
		Txn:               vote.Txn,
		VoteReceipts:      receipts,
		CombinedSignature: combined,
		QuorumPubkey:      a.quorumPubkey,
	}
	a.certified[vote.Txn.ID] = qct
	delete(a.pending, vote.Txn.ID)

	if a.bus != nil {
		a.bus.Publish(events.TopicTransactions, events.Event{
			Kind:    events.KindTransactionCertificateCreated,
			Payload: qct,
		})
	}

	return qct, nil
}

// Certified returns the QuorumCertifiedTxn for id, if certification has
// completed.
func (a *Aggregator) Certified(id primitives.TxHashString) (*QuorumCertifiedTxn, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	qct, ok := a.certified[id]
	return qct, ok
}
