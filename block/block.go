// Package block defines the proposal/convergence block types and the
// Artifact verification sum type (C6 data model), grounded on
// `crates/block`'s Block/ConvergenceBlock/ProposalBlock shapes and the
// REDESIGN FLAGS guidance replacing the original's `Verifiable`/
// `Ownable`/`Nonceable` trait-object stack with one closed sum type plus
// a free `Verify` function.
package block

import (
	"errors"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/vrrb-chain/consensus-core/claim"
	"github.com/vrrb-chain/consensus-core/primitives"
	"github.com/vrrb-chain/consensus-core/txvalidator"
)

// Sentinel errors returned by Verify for the ProposalBlock and
// ConvergenceBlock artifact variants.
var (
	ErrConvergenceSignature  = errors.New("block: signature invalid")
	ErrConvergenceCertificate = errors.New("block: certificate invalid")
)

// RefHash is a block-identifying digest, used to cross-reference
// proposal blocks within a convergence block and vertices within the DAG.
type RefHash string

// ProposalBlock is a harvester's batch of certified transactions and new
// claims referencing a parent convergence block, matching spec §4.6.
type ProposalBlock struct {
	RefHash         RefHash
	Round           uint64
	Epoch           primitives.Epoch
	ParentHash      RefHash
	ProposerID      primitives.NodeId
	ProposerPubkey  []byte
	Txns            []txvalidator.QuorumCertifiedTxn
	NewClaims       []*claim.Claim
	Signature       []byte
	Timestamp       int64
}

// Header carries a convergence block's chain-linkage fields, grounded on
// spec §4.6's "height, block_seed, next_block_seed" header contents.
type Header struct {
	Height         uint64
	ParentHash     RefHash
	BlockSeed      uint64
	NextBlockSeed  uint64
	Timestamp      int64
}

// Certificate is the harvester quorum's threshold signature over a
// convergence block's hash, matching spec §4.6's "threshold certificate
// over the block hash".
type Certificate struct {
	CombinedSignature secp256k1.ModNScalar
	QuorumPubkey      *secp256k1.PublicKey
}

// ConvergenceBlock is the single per-round confirmed block: the
// conflict-resolved union of proposal contents plus its certificate,
// matching spec §4.6 and the GLOSSARY entry for ConvergenceBlock.
type ConvergenceBlock struct {
	RefHash       RefHash
	Header        Header
	ProposalRefs  []RefHash
	// TxnRefs maps a certified transaction id to the RefHash of the
	// proposal whose claim won the conflict resolution for it.
	TxnRefs   map[primitives.TxHashString]RefHash
	ClaimRefs map[primitives.NodeId]RefHash
	MinerID   primitives.NodeId
	Signature []byte
	Certificate *Certificate
}

// Conflict records that a transaction or claim id appeared in more than
// one proposal sharing a parent/round, and how it was resolved.
type Conflict struct {
	ID       string
	Proposers []primitives.NodeId
	WinnerID  primitives.NodeId
}

// Account is the state-commit engine's ledger entry, matching spec §3.
type Account struct {
	Address       primitives.Address
	Credits       uint64
	Debits        uint64
	Nonce         uint64
	CodeStorage   []byte
	SentDigests   map[primitives.TxHashString]struct{}
	ReceivedDigests map[primitives.TxHashString]struct{}
	StakedDigests map[primitives.TxHashString]struct{}
}

// Balance returns credits minus debits, matching spec §3's Account
// invariant. Debits are never allowed to exceed credits by construction
// (enforced at commit time, see `state` package); Balance therefore never
// underflows in a correctly committed account.
func (a Account) Balance() uint64 {
	return a.Credits - a.Debits
}
