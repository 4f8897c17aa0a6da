// Package dag implements the block DAG (C6's store half), grounded on
// spec's "arena + index" redesign note for the original's cyclic
// block/proposer references: the DAG holds all blocks by vertex id;
// proposers and claims are looked up by id rather than embedded as
// graph references.
package dag

import (
	"errors"
	"sync"

	"github.com/vrrb-chain/consensus-core/block"
)

// VertexKind distinguishes the three block kinds that can occupy a DAG
// vertex, matching "vertices are genesis, proposal, and convergence
// blocks".
type VertexKind uint8

const (
	VertexGenesis VertexKind = iota
	VertexProposal
	VertexConvergence
)

var (
	ErrUnknownParent      = errors.New("dag: parent not found")
	ErrParentNotConverged = errors.New("dag: parent is not a convergence block")
	ErrUnknownProposalRef = errors.New("dag: referenced proposal not found")
	ErrProposalParentMismatch = errors.New("dag: referenced proposal has a different parent")
	ErrDuplicateVertex    = errors.New("dag: vertex already present")
)

// Vertex holds exactly one of Proposal or Convergence, selected by Kind;
// the genesis vertex carries only Convergence (its synthetic root
// block).
type Vertex struct {
	Kind        VertexKind
	Proposal    *block.ProposalBlock
	Convergence *block.ConvergenceBlock
}

// DAG is the block store: single-writer (callers serialize writes per
// round), many-reader via an embedded RWMutex, matching spec §5's
// "the DAG is behind a read-write lock; DAG writers are single-threaded
// per round".
type DAG struct {
	mu       sync.RWMutex
	vertices map[block.RefHash]*Vertex
	children map[block.RefHash][]block.RefHash
	head     block.RefHash
}

// NewDAG seeds the DAG with a genesis convergence block as its initial
// topological head.
func NewDAG(genesis *block.ConvergenceBlock) *DAG {
	d := &DAG{
		vertices: make(map[block.RefHash]*Vertex),
		children: make(map[block.RefHash][]block.RefHash),
		head:     genesis.RefHash,
	}
	d.vertices[genesis.RefHash] = &Vertex{Kind: VertexGenesis, Convergence: genesis}
	return d
}

// Head returns the current unique topological head's ref hash.
func (d *DAG) Head() block.RefHash {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.head
}

// Get returns the vertex stored under ref, if any.
func (d *DAG) Get(ref block.RefHash) (*Vertex, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.vertices[ref]
	return v, ok
}

// Children returns the ref hashes of every vertex with ref as a parent.
func (d *DAG) Children(ref block.RefHash) []block.RefHash {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]block.RefHash, len(d.children[ref]))
	copy(out, d.children[ref])
	return out
}

// AddProposal inserts a proposal block vertex, requiring its parent
// hash to already reference a convergence (or genesis) vertex in the
// DAG, matching the ProposalBlock invariant "ref_block exists in the
// DAG".
func (d *DAG) AddProposal(pb *block.ProposalBlock) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.vertices[pb.RefHash]; exists {
		return ErrDuplicateVertex
	}

	parent, ok := d.vertices[pb.ParentHash]
	if !ok {
		return ErrUnknownParent
	}
	if parent.Kind == VertexProposal {
		return ErrParentNotConverged
	}

	d.vertices[pb.RefHash] = &Vertex{Kind: VertexProposal, Proposal: pb}
	d.children[pb.ParentHash] = append(d.children[pb.ParentHash], pb.RefHash)
	return nil
}

// AddConvergence inserts a convergence block vertex, requiring every
// proposal it consolidates to already be present in the DAG, to share
// this block's parent hash, and to carry a certificate that verifies
// against ctx's harvester quorum key, matching spec §4.6's "a
// convergence block is not committed until its certificate verifies".
// On success, cb becomes the new topological head.
func (d *DAG) AddConvergence(cb *block.ConvergenceBlock, ctx block.Context) error {
	if err := block.Verify(block.Artifact{Kind: block.ArtifactConvergenceBlock, ConvergenceBlock: cb}, ctx); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.vertices[cb.RefHash]; exists {
		return ErrDuplicateVertex
	}

	for _, ref := range cb.ProposalRefs {
		v, ok := d.vertices[ref]
		if !ok {
			return ErrUnknownProposalRef
		}
		if v.Kind != VertexProposal || v.Proposal.ParentHash != cb.Header.ParentHash {
			return ErrProposalParentMismatch
		}
	}

	d.vertices[cb.RefHash] = &Vertex{Kind: VertexConvergence, Convergence: cb}
	for _, ref := range cb.ProposalRefs {
		d.children[ref] = append(d.children[ref], cb.RefHash)
	}
	d.head = cb.RefHash
	return nil
}

// AncestorsSince walks the convergence chain backward from `from` to
// `to` (exclusive of `to`, inclusive of `from`), returning the proposal
// blocks consolidated along the way in oldest-first topological order.
// This implements the state commit engine's "walk back through the DAG
// from the block to the last committed head, collecting its proposal
// ancestors in topological order" (spec §4.7 step 1).
func (d *DAG) AncestorsSince(from, to block.RefHash) ([]*block.ProposalBlock, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var chain []*block.ConvergenceBlock
	cursor := from
	for cursor != to {
		v, ok := d.vertices[cursor]
		if !ok || v.Kind == VertexProposal {
			return nil, ErrUnknownParent
		}
		chain = append(chain, v.Convergence)
		if v.Kind == VertexGenesis {
			break
		}
		cursor = v.Convergence.Header.ParentHash
	}

	var proposals []*block.ProposalBlock
	for i := len(chain) - 1; i >= 0; i-- {
		for _, ref := range chain[i].ProposalRefs {
			if v, ok := d.vertices[ref]; ok && v.Kind == VertexProposal {
				proposals = append(proposals, v.Proposal)
			}
		}
	}
	return proposals, nil
}
