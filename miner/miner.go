package miner

import (
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/vrrb-chain/consensus-core/block"
	"github.com/vrrb-chain/consensus-core/claim"
	"github.com/vrrb-chain/consensus-core/cryptoutil"
	"github.com/vrrb-chain/consensus-core/primitives"
)

// ErrRoundDeadlineMissed signals that no convergence block could be
// assembled within a round's deadline, triggering seed rotation per
// spec §4.6's failure semantics.
var ErrRoundDeadlineMissed = errors.New("miner: round deadline missed, reissue with next seed")

// BlockBuilder assembles a ConvergenceBlock from a parent, the accepted
// proposal set, and the conflict-resolution results. This is the Go
// interface standing in for the original's `BlockBuilder` trait object.
type BlockBuilder interface {
	Build(parent *block.ConvergenceBlock, proposals []*block.ProposalBlock, minerID primitives.NodeId, txnRefs map[primitives.TxHashString]block.RefHash, claimRefs map[primitives.NodeId]block.RefHash, now time.Time) (*block.ConvergenceBlock, error)
}

// HeaderBuilder is the default BlockBuilder, deriving the next block seed
// deterministically from the parent seed and the set of accepted
// proposal ref hashes, grounded on `block_builder.rs::BlockBuilder::
// build`'s header-population shape (height, block_seed, next_block_seed).
type HeaderBuilder struct {
	signer *cryptoutil.KeyPair
}

func NewHeaderBuilder(signer *cryptoutil.KeyPair) *HeaderBuilder {
	return &HeaderBuilder{signer: signer}
}

func (b *HeaderBuilder) Build(parent *block.ConvergenceBlock, proposals []*block.ProposalBlock, minerID primitives.NodeId, txnRefs map[primitives.TxHashString]block.RefHash, claimRefs map[primitives.NodeId]block.RefHash, now time.Time) (*block.ConvergenceBlock, error) {
	if len(proposals) == 0 {
		return nil, ErrNoProposals
	}

	height := uint64(0)
	blockSeed := uint64(0)
	parentRef := block.RefHash("")
	if parent != nil {
		height = parent.Header.Height + 1
		blockSeed = parent.Header.NextBlockSeed
		parentRef = parent.RefHash
	}

	proposalRefs := make([]block.RefHash, 0, len(proposals))
	for _, p := range proposals {
		proposalRefs = append(proposalRefs, p.RefHash)
	}

	header := block.Header{
		Height:        height,
		ParentHash:    parentRef,
		BlockSeed:     blockSeed,
		NextBlockSeed: nextSeed(blockSeed, proposalRefs),
		Timestamp:     now.Unix(),
	}

	cb := &block.ConvergenceBlock{
		Header:       header,
		ProposalRefs: proposalRefs,
		TxnRefs:      txnRefs,
		ClaimRefs:    claimRefs,
		MinerID:      minerID,
	}
	cb.RefHash = block.RefHash(cryptoutil.HexFromBytes(refHash(cb)))

	if b.signer != nil {
		cb.Signature = b.signer.Sign([]byte(cb.RefHash))
	}

	return cb, nil
}

// nextSeed derives the seed for the following round by hashing the
// current seed together with the accepted proposal set, matching the
// spirit of `quorum.rs::generate_quorum_seed`'s hash-then-reduce shape
// without depending on a fresh VRF call (the next seed only needs to be
// a function of already-certified round contents, not a secret).
func nextSeed(prev uint64, refs []block.RefHash) uint64 {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, prev)
	for _, r := range refs {
		buf = append(buf, []byte(r)...)
	}
	digest := cryptoutil.Keccak256(buf)
	return binary.BigEndian.Uint64(digest[:8])
}

func refHash(cb *block.ConvergenceBlock) []byte {
	buf := make([]byte, 0, 64)
	var heightBuf [8]byte
	binary.BigEndian.PutUint64(heightBuf[:], cb.Header.Height)
	buf = append(buf, heightBuf[:]...)
	buf = append(buf, []byte(cb.Header.ParentHash)...)
	buf = append(buf, []byte(cb.MinerID)...)
	for _, ref := range cb.ProposalRefs {
		buf = append(buf, []byte(ref)...)
	}
	digest := cryptoutil.Keccak256(buf)
	return digest[:]
}

// Miner orchestrates proposal collection, conflict resolution, and
// convergence block assembly for a single elected miner, grounded on
// `miner/src/miner.rs::Miner::try_mine`'s top-level loop.
type Miner struct {
	id       primitives.NodeId
	resolver Resolver
	builder  BlockBuilder
	pool     *ProposalPool
	claims   *claim.ReadHandleFactory

	mu      sync.Mutex
	invalid map[block.RefHash]struct{}
}

func NewMiner(id primitives.NodeId, resolver Resolver, builder BlockBuilder, pool *ProposalPool, claims *claim.ReadHandleFactory) *Miner {
	return &Miner{
		id:       id,
		resolver: resolver,
		builder:  builder,
		pool:     pool,
		claims:   claims,
		invalid:  make(map[block.RefHash]struct{}),
	}
}

// SubmitProposal adds an incoming proposal block to the collection pool.
// Signature and parent-existence checks happen upstream via
// block.Verify(block.Artifact{Kind: block.ArtifactProposalBlock, ...}, ctx).
func (m *Miner) SubmitProposal(pb *block.ProposalBlock, now time.Time) {
	m.pool.Add(pb, now)
}

// TryConverge attempts to assemble a convergence block for (parent,
// round) once the proposal window has elapsed, folding in any orphaned
// proposals salvaged from prior rounds. Returns (nil, false, nil) if the
// window has not yet elapsed.
func (m *Miner) TryConverge(parent *block.ConvergenceBlock, round uint64, now time.Time) (*block.ConvergenceBlock, bool, error) {
	parentRef := block.RefHash("")
	if parent != nil {
		parentRef = parent.RefHash
	}

	if !m.pool.Ready(parentRef, round, now) {
		return nil, false, nil
	}

	proposals := m.pool.Take(parentRef, round)
	proposals = append(proposals, m.pool.Orphaned(round)...)
	if len(proposals) == 0 {
		return nil, false, ErrRoundDeadlineMissed
	}

	blockSeed := uint64(0)
	if parent != nil {
		blockSeed = parent.Header.NextBlockSeed
	}

	claimsHandle := m.claims.Handle()

	txnRefs, _, err := m.resolver.ResolveTxnConflicts(proposals, claimsHandle, blockSeed)
	if err != nil {
		return nil, false, err
	}
	claimRefs, _, err := m.resolver.ResolveClaimConflicts(proposals, claimsHandle, blockSeed)
	if err != nil {
		return nil, false, err
	}

	cb, err := m.builder.Build(parent, proposals, m.id, txnRefs, claimRefs, now)
	if err != nil {
		return nil, false, err
	}

	return cb, true, nil
}

// MarkInvalid records that cb's certificate failed verification; it is
// never admitted to the DAG, matching "a block whose certificate fails
// verification is added to an invalid set".
func (m *Miner) MarkInvalid(ref block.RefHash) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalid[ref] = struct{}{}
}

// IsInvalid reports whether ref was previously marked invalid.
func (m *Miner) IsInvalid(ref block.RefHash) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.invalid[ref]
	return ok
}
