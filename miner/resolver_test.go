package miner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vrrb-chain/consensus-core/block"
	"github.com/vrrb-chain/consensus-core/claim"
	"github.com/vrrb-chain/consensus-core/mempool"
	"github.com/vrrb-chain/consensus-core/primitives"
	"github.com/vrrb-chain/consensus-core/txvalidator"
)

// stakedClaim returns a validator-eligible claim that will pass
// registry insertion (valid recomputed hash, sufficient stake).
func stakedClaim(t *testing.T, pubkey string, nonce uint64) *claim.Claim {
	t.Helper()
	c := claim.New([]byte(pubkey), primitives.Address(pubkey), nonce)
	c.AddStakeEvent(claim.StakeEventStake, claim.MinStakeValidator, nil)
	return c
}

func claimsHandle(t *testing.T, claims map[primitives.NodeId]*claim.Claim) *claim.ReadHandle {
	t.Helper()
	r := claim.NewRegistry(claim.NewValidator())
	for id, c := range claims {
		require.NoError(t, r.Insert(id, c))
	}
	r.Publish()
	return r.ReadHandleFactory().Handle()
}

func makeTxn(id primitives.TxHashString) mempool.Transaction {
	return mempool.Transaction{ID: id, SenderAddress: "sender", ReceiverAddress: "receiver", Amount: 1}
}

// TestResolveTxnConflictsSmallestPointerWins builds two proposals that
// both carry the same transaction id, each backed by its proposer's real
// claim. The resolver must pick whichever proposer's claim yields the
// smaller Pointer(blockSeed) and record the transaction under that
// proposal's RefHash, matching the smallest-pointer-wins rule.
func TestResolveTxnConflictsSmallestPointerWins(t *testing.T) {
	const seed = uint64(0xabc123)

	claimA := stakedClaim(t, "proposer-a", 1)
	claimB := stakedClaim(t, "proposer-b", 2)

	ptrA, ok := claimA.Pointer(seed)
	require.True(t, ok)
	ptrB, ok := claimB.Pointer(seed)
	require.True(t, ok)
	require.NotZero(t, ptrA.Cmp(ptrB), "test fixture needs two claims with distinct pointers")

	winnerID := primitives.NodeId("proposer-a")
	if ptrB.Cmp(ptrA) < 0 {
		winnerID = "proposer-b"
	}

	handle := claimsHandle(t, map[primitives.NodeId]*claim.Claim{
		"proposer-a": claimA,
		"proposer-b": claimB,
	})

	proposalA := &block.ProposalBlock{RefHash: "proposal-a", ProposerID: "proposer-a", ProposerPubkey: []byte("proposer-a")}
	proposalB := &block.ProposalBlock{RefHash: "proposal-b", ProposerID: "proposer-b", ProposerPubkey: []byte("proposer-b")}

	shared := primitives.TxHashString("shared-txn")
	proposalA.Txns = []txvalidator.QuorumCertifiedTxn{{Txn: makeTxn(shared)}}
	proposalB.Txns = []txvalidator.QuorumCertifiedTxn{{Txn: makeTxn(shared)}}

	winnerRef := proposalA.RefHash
	if winnerID == "proposer-b" {
		winnerRef = proposalB.RefHash
	}

	r := NewPointerResolver()
	refs, conflicts, err := r.ResolveTxnConflicts([]*block.ProposalBlock{proposalA, proposalB}, handle, seed)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	require.Equal(t, winnerID, conflicts[0].WinnerID)
	require.ElementsMatch(t, []primitives.NodeId{"proposer-a", "proposer-b"}, conflicts[0].Proposers)
	require.Equal(t, winnerRef, refs[shared])
}

func TestResolveTxnConflictsUncontestedPassesThrough(t *testing.T) {
	handle := claimsHandle(t, map[primitives.NodeId]*claim.Claim{
		"solo": stakedClaim(t, "solo", 1),
	})

	p := &block.ProposalBlock{RefHash: "proposal-solo", ProposerID: "solo"}
	p.Txns = []txvalidator.QuorumCertifiedTxn{{Txn: makeTxn("lone-txn")}}

	r := NewPointerResolver()
	refs, conflicts, err := r.ResolveTxnConflicts([]*block.ProposalBlock{p}, handle, 7)
	require.NoError(t, err)
	require.Empty(t, conflicts)
	require.Equal(t, p.RefHash, refs["lone-txn"])
}

func TestResolveTxnConflictsEmptyProposalsErrors(t *testing.T) {
	r := NewPointerResolver()
	_, _, err := r.ResolveTxnConflicts(nil, nil, 1)
	require.ErrorIs(t, err, ErrNoProposals)
}

// TestResolveTxnConflictsCachedPointerMatchesDirect exercises the
// pointer cache's multi-contested-id path: the same two proposers
// contest two separate transaction ids in one round, so each proposer's
// claim.Pointer(seed) is looked up twice. The cached value returned the
// second time must still equal a fresh direct computation.
func TestResolveTxnConflictsCachedPointerMatchesDirect(t *testing.T) {
	const seed = uint64(0xdeadbeef)

	claimA := stakedClaim(t, "proposer-a", 1)
	claimB := stakedClaim(t, "proposer-b", 2)

	handle := claimsHandle(t, map[primitives.NodeId]*claim.Claim{
		"proposer-a": claimA,
		"proposer-b": claimB,
	})

	proposalA := &block.ProposalBlock{RefHash: "proposal-a", ProposerID: "proposer-a", ProposerPubkey: []byte("proposer-a")}
	proposalB := &block.ProposalBlock{RefHash: "proposal-b", ProposerID: "proposer-b", ProposerPubkey: []byte("proposer-b")}

	proposalA.Txns = []txvalidator.QuorumCertifiedTxn{
		{Txn: makeTxn("shared-1")},
		{Txn: makeTxn("shared-2")},
	}
	proposalB.Txns = []txvalidator.QuorumCertifiedTxn{
		{Txn: makeTxn("shared-1")},
		{Txn: makeTxn("shared-2")},
	}

	r := NewPointerResolver()
	refs, conflicts, err := r.ResolveTxnConflicts([]*block.ProposalBlock{proposalA, proposalB}, handle, seed)
	require.NoError(t, err)
	require.Len(t, conflicts, 2)

	wantPtrA, ok := claimA.Pointer(seed)
	require.True(t, ok)
	wantPtrB, ok := claimB.Pointer(seed)
	require.True(t, ok)
	wantWinner := proposalA.RefHash
	if wantPtrB.Cmp(wantPtrA) < 0 {
		wantWinner = proposalB.RefHash
	}

	require.Equal(t, wantWinner, refs["shared-1"])
	require.Equal(t, wantWinner, refs["shared-2"], "the second lookup must return the same pointer the cache stored for the first")
}
