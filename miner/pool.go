package miner

import (
	"sync"
	"time"

	"github.com/vrrb-chain/consensus-core/block"
)

type poolKey struct {
	parent block.RefHash
	round  uint64
}

type proposalGroup struct {
	firstSeen time.Time
	proposals []*block.ProposalBlock
}

// ProposalPool collects proposal blocks sharing a parent and round until
// the configured proposal window elapses, grounded on spec §4.6's "the
// miner collects proposal blocks sharing the same parent and round
// within a proposal window (bounded wall-clock duration after
// first-seen)".
type ProposalPool struct {
	mu     sync.Mutex
	window time.Duration
	cutoff uint64
	groups map[poolKey]*proposalGroup
}

// NewProposalPool returns a pool collecting proposals for `window` after
// first-seen, treating groups more than `roundCutoff` rounds behind the
// current round as orphaned.
func NewProposalPool(window time.Duration, roundCutoff uint64) *ProposalPool {
	return &ProposalPool{
		window: window,
		cutoff: roundCutoff,
		groups: make(map[poolKey]*proposalGroup),
	}
}

// Add registers a proposal under its (parent, round) group, recording
// the group's first-seen time on first insert.
func (p *ProposalPool) Add(pb *block.ProposalBlock, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := poolKey{parent: pb.ParentHash, round: pb.Round}
	g, ok := p.groups[key]
	if !ok {
		g = &proposalGroup{firstSeen: now}
		p.groups[key] = g
	}
	g.proposals = append(g.proposals, pb)
}

// Ready reports whether the proposal window has elapsed for the given
// (parent, round) group.
func (p *ProposalPool) Ready(parent block.RefHash, round uint64, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	g, ok := p.groups[poolKey{parent: parent, round: round}]
	if !ok {
		return false
	}
	return now.Sub(g.firstSeen) >= p.window
}

// Take removes and returns the proposals collected for (parent, round).
func (p *ProposalPool) Take(parent block.RefHash, round uint64) []*block.ProposalBlock {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := poolKey{parent: parent, round: round}
	g, ok := p.groups[key]
	if !ok {
		return nil
	}
	delete(p.groups, key)
	return g.proposals
}

// Orphaned removes and returns every group more than the configured
// round cutoff behind currentRound, matching "proposals older than a
// configurable round cutoff are considered orphaned; their
// non-conflicting transactions may be salvaged by the next convergence
// block".
func (p *ProposalPool) Orphaned(currentRound uint64) []*block.ProposalBlock {
	p.mu.Lock()
	defer p.mu.Unlock()

	var orphaned []*block.ProposalBlock
	for key, g := range p.groups {
		if currentRound > p.cutoff && key.round < currentRound-p.cutoff {
			orphaned = append(orphaned, g.proposals...)
			delete(p.groups, key)
		}
	}
	return orphaned
}
