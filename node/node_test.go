package node

import (
	"testing"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/vrrb-chain/consensus-core/block"
	"github.com/vrrb-chain/consensus-core/config"
	"github.com/vrrb-chain/consensus-core/mempool"
	"github.com/vrrb-chain/consensus-core/miner"
	"github.com/vrrb-chain/consensus-core/primitives"
	"github.com/vrrb-chain/consensus-core/txvalidator"
)

func newTestNode(t *testing.T) *Node {
	t.Helper()
	cfg := config.DefaultNodeConfig()
	cfg.ID = "node-1"
	cfg.Idx = 0
	cfg.EventBusBuffer = 8
	n, err := New(cfg, config.ElectionTiming{ProposalWindow: 0, DkgAckRetryCap: 3, RoundCutoff: 3}, prometheus.NewRegistry())
	require.NoError(t, err)
	return n
}

// submitProposal builds and submits a single-transaction proposal
// block against the node's current DAG head, returning it.
func submitProposal(t *testing.T, n *Node, txnID primitives.TxHashString, sender, receiver primitives.Address, amount uint64) *block.ProposalBlock {
	t.Helper()
	parentRef := n.dag.Head()
	pb := &block.ProposalBlock{
		RefHash:    block.RefHash("proposal-" + string(txnID)),
		ParentHash: parentRef,
		Txns: []txvalidator.QuorumCertifiedTxn{{
			Txn: mempool.Transaction{
				ID:              txnID,
				SenderAddress:   sender,
				ReceiverAddress: receiver,
				Amount:          amount,
			},
		}},
	}
	require.NoError(t, n.dag.AddProposal(pb))
	n.SubmitProposal(pb, time.Now())
	return pb
}

// TestTryConvergeRejectsMissingCertificate drives the real
// miner.TryConverge -> dag.AddConvergence -> commit.Commit path with no
// certifier installed: the assembled block can never acquire a
// certificate, so it is marked invalid, never reaches DAG admission,
// and the committed head is left unchanged. This exercises spec §4.6's
// gate through the node's actual control flow rather than simulating
// the check by hand.
func TestTryConvergeRejectsMissingCertificate(t *testing.T) {
	n := newTestNode(t)
	n.accounts.Apply(map[primitives.Address]*block.Account{
		"alice": {Address: "alice", Credits: 100,
			SentDigests: map[primitives.TxHashString]struct{}{}, ReceivedDigests: map[primitives.TxHashString]struct{}{}, StakedDigests: map[primitives.TxHashString]struct{}{}},
	})
	n.accounts.Publish()

	headBefore := n.dag.Head()
	submitProposal(t, n, "t1", "alice", "bob", 10)

	genesis := &block.ConvergenceBlock{RefHash: GenesisRefHash}
	cb, err := n.TryConverge(genesis, 0, time.Now())
	require.Error(t, err)
	require.Nil(t, cb)

	// The rejected block never became the DAG head.
	require.Equal(t, headBefore, n.dag.Head())
}

// TestTryConvergeCommitsWithValidCertificate installs a harvester
// certifier directly (standing in for a finalized harvester DKG round)
// and drives a full convergence through Node.TryConverge end to end:
// once a threshold of cert votes combine into a certificate for the
// miner's deterministically-built block, the block is admitted to the
// DAG and its transactions committed.
func TestTryConvergeCommitsWithValidCertificate(t *testing.T) {
	n := newTestNode(t)
	n.accounts.Apply(map[primitives.Address]*block.Account{
		"alice": {Address: "alice", Credits: 100,
			SentDigests: map[primitives.TxHashString]struct{}{}, ReceivedDigests: map[primitives.TxHashString]struct{}{}, StakedDigests: map[primitives.TxHashString]struct{}{}},
	})
	n.accounts.Publish()

	quorumPriv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	// threshold 0 means a single cert vote (threshold+1 = 1) certifies a
	// block; combining one (index, share) pair via Lagrange interpolation
	// is the identity, so the lone vote's share must itself be the group
	// secret scalar for the certificate to verify.
	n.certifier = miner.NewCertifier(0, quorumPriv.PubKey(), n.bus)
	n.harvesterQuorumPubkey = quorumPriv.PubKey().SerializeCompressed()

	genesis := &block.ConvergenceBlock{RefHash: GenesisRefHash}
	pb := submitProposal(t, n, "t1", "alice", "bob", 10)

	// Deterministically recompute the RefHash the miner's HeaderBuilder
	// will assign, so a cert vote can be submitted against it before the
	// block is actually built (mirroring an independent harvester running
	// the same build function over the same proposal set).
	buildTime := time.Now()
	preview, err := miner.NewHeaderBuilder(nil).Build(genesis, []*block.ProposalBlock{pb}, n.cfg.ID, map[primitives.TxHashString]block.RefHash{}, map[primitives.NodeId]block.RefHash{}, buildTime)
	require.NoError(t, err)

	_, err = n.SubmitCertVote(miner.CertVote{
		HarvesterIdx: 0,
		BlockRef:     preview.RefHash,
		PartialShare: quorumPriv.Key,
	})
	require.NoError(t, err)

	cert, ok := n.certifier.Certificate(preview.RefHash)
	require.True(t, ok)
	require.NotNil(t, cert)

	cb, err := n.TryConverge(genesis, 0, buildTime)
	require.NoError(t, err)
	require.NotNil(t, cb)
	require.Equal(t, preview.RefHash, cb.RefHash)
	require.Equal(t, cb.RefHash, n.dag.Head())
	require.Equal(t, cb.RefHash, n.commit.LastCommitted())
}
