package state

import (
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/require"

	"github.com/vrrb-chain/consensus-core/block"
	"github.com/vrrb-chain/consensus-core/dag"
	"github.com/vrrb-chain/consensus-core/mempool"
	"github.com/vrrb-chain/consensus-core/primitives"
	"github.com/vrrb-chain/consensus-core/txvalidator"
)

const genesisRef = block.RefHash("genesis")

func newTestEngine(t *testing.T) (*Engine, *dag.DAG) {
	t.Helper()
	d := dag.NewDAG(&block.ConvergenceBlock{RefHash: genesisRef})
	e := NewEngine(NewAccountStore(), NewClaimStore(), NewTransactionStore(), d, nil, nil, genesisRef)
	return e, d
}

// seedAccount credits addr directly in the account trie, standing in for
// genesis allocation (the commit engine's own debit/credit bookkeeping
// only ever consolidates transactions, so a transaction can't mint the
// opening balance without itself tripping the no-double-spend check).
func seedAccount(t *testing.T, e *Engine, d *dag.DAG, addr primitives.Address, amount uint64) block.RefHash {
	t.Helper()

	e.accounts.Apply(map[primitives.Address]*block.Account{
		addr: {
			Address:         addr,
			Credits:         amount,
			SentDigests:     make(map[primitives.TxHashString]struct{}),
			ReceivedDigests: make(map[primitives.TxHashString]struct{}),
			StakedDigests:   make(map[primitives.TxHashString]struct{}),
		},
	})
	e.accounts.Publish()
	return genesisRef
}

// testCertificate returns a self-consistent harvester certificate: a
// freshly generated scalar and its own curve point, which is exactly
// what cryptoutil.VerifyGroupSecret checks, standing in for a genuine
// threshold-reconstructed certificate.
func testCertificate(t *testing.T) *block.Certificate {
	t.Helper()
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	return &block.Certificate{CombinedSignature: priv.Key, QuorumPubkey: priv.PubKey()}
}

func spendProposal(ref, parent block.RefHash, txnID primitives.TxHashString, sender, receiver primitives.Address, amount, nonce uint64) *block.ProposalBlock {
	return &block.ProposalBlock{
		RefHash:    ref,
		ParentHash: parent,
		Txns: []txvalidator.QuorumCertifiedTxn{{
			Txn: mempool.Transaction{
				ID:              txnID,
				SenderAddress:   sender,
				ReceiverAddress: receiver,
				Amount:          amount,
				Nonce:           nonce,
			},
		}},
	}
}

// TestCommitRejectsDoubleSpend seeds a sender with a balance of 100, then
// commits two separate convergence blocks each spending 80. The first
// commit succeeds; the second would drive the sender's cumulative debits
// to 160 against 100 credits, so it is rejected and the committed state
// is left exactly as the first commit produced it.
func TestCommitRejectsDoubleSpend(t *testing.T) {
	e, d := newTestEngine(t)
	head := seedAccount(t, e, d, "alice", 100)

	p1 := spendProposal("p1", head, "t1", "alice", "bob", 80, 1)
	require.NoError(t, d.AddProposal(p1))
	cb1 := &block.ConvergenceBlock{RefHash: "cb1", Header: block.Header{ParentHash: head}, ProposalRefs: []block.RefHash{p1.RefHash}, Certificate: testCertificate(t)}
	require.NoError(t, d.AddConvergence(cb1, block.Context{}))

	roots1, err := e.Commit(cb1.RefHash)
	require.NoError(t, err)
	require.Equal(t, cb1.RefHash, e.LastCommitted())

	p2 := spendProposal("p2", cb1.RefHash, "t2", "alice", "carol", 80, 2)
	require.NoError(t, d.AddProposal(p2))
	cb2 := &block.ConvergenceBlock{RefHash: "cb2", Header: block.Header{ParentHash: cb1.RefHash}, ProposalRefs: []block.RefHash{p2.RefHash}, Certificate: testCertificate(t)}
	require.NoError(t, d.AddConvergence(cb2, block.Context{}))

	_, err = e.Commit(cb2.RefHash)
	require.ErrorIs(t, err, ErrStateCommitConflict)

	require.Equal(t, cb1.RefHash, e.LastCommitted())

	handle := e.accounts.ReadHandleFactory().Handle()
	alice, ok := handle.Get("alice")
	require.True(t, ok)
	require.Equal(t, uint64(20), alice.Balance())
	require.Equal(t, roots1.Accounts, e.accounts.Publish())

	// The rejected second spend must never have reached the transaction
	// store's working set, not just have its account-side effects rolled
	// back.
	txnHandle := e.txns.ReadHandleFactory().Handle()
	_, seen := txnHandle.Get("t2")
	require.False(t, seen, "rejected commit leaked its transaction into the published store")
	_, seen = txnHandle.Get("t1")
	require.True(t, seen, "the first, accepted commit's transaction must still be present")
}
