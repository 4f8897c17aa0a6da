// Package quorum defines the elected-committee membership types,
// grounded on `vrrb_config/src/quorum.rs::{QuorumMember, QuorumMembers,
// QuorumMembershipConfig}`.
package quorum

import (
	"net"
	"sort"

	"github.com/vrrb-chain/consensus-core/primitives"
)

// Member is a single elected participant, carrying the gossip addresses
// and validator public key the original `QuorumMember` struct holds
// (RaptorQ/Kademlia-specific transport fields are out of scope here; the
// `GossipAddress` field stands in for whatever transport layer sits atop
// this library).
type Member struct {
	NodeID           primitives.NodeId
	Kind             primitives.QuorumKind
	NodeType         primitives.NodeType
	ValidatorPubkey  []byte
	GossipAddress    net.Addr
}

// Membership is the BTree-ordered set of members sharing one quorum
// kind, matching `QuorumMembershipConfig`.
type Membership struct {
	Kind    primitives.QuorumKind
	Members map[primitives.NodeId]Member
}

// NewMembership returns an empty membership of the given kind.
func NewMembership(kind primitives.QuorumKind) *Membership {
	return &Membership{Kind: kind, Members: make(map[primitives.NodeId]Member)}
}

// Add inserts or replaces a member.
func (m *Membership) Add(member Member) {
	m.Members[member.NodeID] = member
}

// SortedIDs returns member ids in ascending order, the Go equivalent of
// iterating a `BTreeMap<NodeId, QuorumMember>`.
func (m *Membership) SortedIDs() []primitives.NodeId {
	ids := make([]primitives.NodeId, 0, len(m.Members))
	for id := range m.Members {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len reports the membership size.
func (m *Membership) Len() int {
	return len(m.Members)
}

// Assignment is the outcome of a quorum election: the full set of
// members partitioned by kind, published on the event bus as
// `QuorumMembershipAssignmentCreated`.
type Assignment struct {
	Harvesters *Membership
	Farmers    *Membership
}

// NewAssignment builds an Assignment from elected harvester/farmer id
// lists, with members otherwise populated by the caller (the election
// package only knows ids/pointers, not gossip addresses or pubkeys,
// which live on the claim registry).
func NewAssignment(harvesterIDs, farmerIDs []primitives.NodeId, lookup func(primitives.NodeId) Member) *Assignment {
	harvesters := NewMembership(primitives.QuorumKindHarvester)
	for _, id := range harvesterIDs {
		harvesters.Add(lookup(id))
	}
	farmers := NewMembership(primitives.QuorumKindFarmer)
	for _, id := range farmerIDs {
		farmers.Add(lookup(id))
	}
	return &Assignment{Harvesters: harvesters, Farmers: farmers}
}
