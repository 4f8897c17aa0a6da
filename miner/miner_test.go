package miner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vrrb-chain/consensus-core/block"
	"github.com/vrrb-chain/consensus-core/dag"
)

func TestMinerMarkInvalidTracksRef(t *testing.T) {
	m := NewMiner("miner-1", NewPointerResolver(), NewHeaderBuilder(nil), NewProposalPool(time.Second, 3), nil)

	require.False(t, m.IsInvalid("cb1"))
	m.MarkInvalid("cb1")
	require.True(t, m.IsInvalid("cb1"))
	require.False(t, m.IsInvalid("cb2"))
}

// TestCertificateFailureHaltsCommit is a focused unit test of the two
// primitives the real gate is built from: block.Verify rejects a block
// whose certificate is missing, and Miner.MarkInvalid records it. See
// node.TestTryConvergeRejectsMissingCertificate for the same gate
// exercised through the actual dag.AddConvergence admission path.
func TestCertificateFailureHaltsCommit(t *testing.T) {
	genesis := &block.ConvergenceBlock{RefHash: "genesis"}
	d := dag.NewDAG(genesis)
	m := NewMiner("miner-1", NewPointerResolver(), NewHeaderBuilder(nil), NewProposalPool(time.Second, 3), nil)

	badBlock := &block.ConvergenceBlock{
		RefHash: "cb-bad",
		Header:  block.Header{Height: 1, ParentHash: "genesis"},
		// Certificate deliberately nil.
	}

	err := block.Verify(block.Artifact{Kind: block.ArtifactConvergenceBlock, ConvergenceBlock: badBlock}, block.Context{})
	require.ErrorIs(t, err, block.ErrConvergenceCertificate)

	m.MarkInvalid(badBlock.RefHash)
	require.True(t, m.IsInvalid(badBlock.RefHash))

	_, ok := d.Get(badBlock.RefHash)
	require.False(t, ok, "an invalid certificate must never reach DAG admission")
	require.Equal(t, genesis.RefHash, d.Head())
}
