package miner

import (
	"sync"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/vrrb-chain/consensus-core/block"
	"github.com/vrrb-chain/consensus-core/cryptoutil"
	"github.com/vrrb-chain/consensus-core/events"
	"github.com/vrrb-chain/consensus-core/primitives"
)

// CertVote is a harvester's DKG secret share, submitted against a
// specific convergence block once it has been built and broadcast,
// mirroring `txvalidator.Vote`'s role for farmer certification but for
// the harvester quorum's convergence-block certificate.
type CertVote struct {
	HarvesterID  primitives.NodeId
	HarvesterIdx uint16
	BlockRef     block.RefHash
	PartialShare secp256k1.ModNScalar
}

type certVoteSet struct {
	votes map[uint16]CertVote
}

// Certifier collects per-block harvester cert votes and, once a block
// reaches threshold+1 distinct partials, combines them via Lagrange
// interpolation into a block.Certificate, matching spec §4.6's
// "threshold certificate over the block hash" and mirroring
// `txvalidator.Aggregator`'s combine-on-threshold shape.
type Certifier struct {
	mu        sync.Mutex
	threshold int
	pending   map[block.RefHash]*certVoteSet
	certified map[block.RefHash]*block.Certificate

	quorumPubkey *secp256k1.PublicKey
	bus          *events.Bus
}

// NewCertifier returns a Certifier requiring threshold+1 distinct
// harvester cert votes before certifying a convergence block.
func NewCertifier(threshold int, quorumPubkey *secp256k1.PublicKey, bus *events.Bus) *Certifier {
	return &Certifier{
		threshold:    threshold,
		pending:      make(map[block.RefHash]*certVoteSet),
		certified:    make(map[block.RefHash]*block.Certificate),
		quorumPubkey: quorumPubkey,
		bus:          bus,
	}
}

// AddVote records a harvester's cert vote for a convergence block ref.
// Once enough distinct votes are collected, the partials are combined
// into a block.Certificate and ConvergenceCertificateCreated is
// published. Votes for an already-certified ref are dropped.
func (c *Certifier) AddVote(vote CertVote) (*block.Certificate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, done := c.certified[vote.BlockRef]; done {
		return nil, nil
	}

	set, ok := c.pending[vote.BlockRef]
	if !ok {
		set = &certVoteSet{votes: make(map[uint16]CertVote)}
		c.pending[vote.BlockRef] = set
	}
	set.votes[vote.HarvesterIdx] = vote

	if len(set.votes) < c.threshold+1 {
		return nil, nil
	}

	indices := make([]uint32, 0, len(set.votes))
	shares := make([]secp256k1.ModNScalar, 0, len(set.votes))
	for idx, v := range set.votes {
		indices = append(indices, uint32(idx)+1)
		shares = append(shares, v.PartialShare)
	}

	combined, err := cryptoutil.CombineShares(indices, shares)
	if err != nil {
		return nil, err
	}

	cert := &block.Certificate{
		CombinedSignature: combined,
		QuorumPubkey:      c.quorumPubkey,
	}
	c.certified[vote.BlockRef] = cert
	delete(c.pending, vote.BlockRef)

	if c.bus != nil {
		c.bus.Publish(events.TopicBlocks, events.Event{
			Kind:    events.KindConvergenceCertificateCreated,
			Payload: cert,
		})
	}

	return cert, nil
}

// Certificate returns the certificate for ref, if certification has
// completed.
func (c *Certifier) Certificate(ref block.RefHash) (*block.Certificate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cert, ok := c.certified[ref]
	return cert, ok
}
