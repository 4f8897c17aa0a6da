package block

import (
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/vrrb-chain/consensus-core/claim"
	"github.com/vrrb-chain/consensus-core/cryptoutil"
	"github.com/vrrb-chain/consensus-core/mempool"
	"github.com/vrrb-chain/consensus-core/txvalidator"
)

// ArtifactKind tags which variant an Artifact carries.
type ArtifactKind uint8

const (
	ArtifactClaim ArtifactKind = iota
	ArtifactTxn
	ArtifactProposalBlock
	ArtifactConvergenceBlock
	ArtifactVote
)

// Artifact is the single closed sum type standing in for the original's
// `Verifiable`/`Ownable`/`Nonceable` trait-object stack (see spec §9
// DESIGN NOTES: "Replace with a single sum type of verifiable artifacts
// ... plus one free function verify"). Exactly one of the typed fields
// is populated, selected by Kind.
type Artifact struct {
	Kind             ArtifactKind
	Claim            *claim.Claim
	Txn              *mempool.Transaction
	ProposalBlock    *ProposalBlock
	ConvergenceBlock *ConvergenceBlock
	Vote             *txvalidator.Vote
}

// Context bundles the state snapshot and quorum keys Verify needs,
// matching "Context carries the state snapshot and quorum keys needed"
// from the same design note.
type Context struct {
	AccountLookup      txvalidator.AccountLookup
	FarmerQuorumPubkey []byte
	HarvesterQuorumPubkey []byte
}

var (
	ErrUnknownArtifactKind = errors.New("block: unknown artifact kind")
	ErrArtifactMismatch    = errors.New("block: artifact kind does not match populated field")
)

// Verify dispatches to the appropriate check for a.Kind, returning a
// wrapped sentinel error from the owning package on failure.
func Verify(a Artifact, ctx Context) error {
	switch a.Kind {
	case ArtifactClaim:
		if a.Claim == nil {
			return ErrArtifactMismatch
		}
		v := claim.NewValidator()
		if err := v.VerifyHash(a.Claim); err != nil {
			return err
		}
		return v.Validate(a.Claim)

	case ArtifactTxn:
		if a.Txn == nil {
			return ErrArtifactMismatch
		}
		return txvalidator.New(ctx.AccountLookup).Validate(*a.Txn)

	case ArtifactVote:
		if a.Vote == nil {
			return ErrArtifactMismatch
		}
		// A vote's own partial share is verified against the farmer
		// quorum's published commitments at aggregation time
		// (cryptoutil.VerifyShare); Verify here only confirms the vote
		// references a transaction that exists.
		if a.Vote.Txn.ID == "" {
			return fmt.Errorf("block: vote references empty transaction id")
		}
		return nil

	case ArtifactProposalBlock:
		if a.ProposalBlock == nil {
			return ErrArtifactMismatch
		}
		return verifyProposalBlock(a.ProposalBlock, ctx)

	case ArtifactConvergenceBlock:
		if a.ConvergenceBlock == nil {
			return ErrArtifactMismatch
		}
		return verifyConvergenceBlock(a.ConvergenceBlock, ctx)

	default:
		return ErrUnknownArtifactKind
	}
}

func verifyProposalBlock(p *ProposalBlock, ctx Context) error {
	payload := []byte(fmt.Sprintf("%s:%d:%d:%s", p.ProposerID, p.Round, p.Epoch, p.ParentHash))
	ok, err := cryptoutil.VerifySignature(p.ProposerPubkey, payload, p.Signature)
	if err != nil || !ok {
		return fmt.Errorf("%w: proposal signature invalid", ErrConvergenceSignature)
	}
	for _, txn := range p.Txns {
		if ctx.FarmerQuorumPubkey != nil {
			// Combined-signature verification against the farmer group
			// key is performed by the aggregator at certification time;
			// here we only confirm the certificate carries a group key.
			if txn.QuorumPubkey == nil {
				return fmt.Errorf("%w: certified txn %s missing quorum pubkey", ErrConvergenceCertificate, txn.Txn.ID)
			}
		}
	}
	return nil
}

func verifyConvergenceBlock(c *ConvergenceBlock, ctx Context) error {
	if c.Certificate == nil || c.Certificate.QuorumPubkey == nil {
		return ErrConvergenceCertificate
	}

	if ctx.HarvesterQuorumPubkey != nil {
		want, err := secp256k1.ParsePubKey(ctx.HarvesterQuorumPubkey)
		if err != nil {
			return fmt.Errorf("%w: elected harvester quorum key: %v", ErrConvergenceCertificate, err)
		}
		if !want.IsEqual(c.Certificate.QuorumPubkey) {
			return fmt.Errorf("%w: certificate key does not match the elected harvester quorum", ErrConvergenceCertificate)
		}
	}

	if !cryptoutil.VerifyGroupSecret(c.Certificate.CombinedSignature, c.Certificate.QuorumPubkey) {
		return fmt.Errorf("%w: combined signature does not reconstruct the quorum key", ErrConvergenceCertificate)
	}
	return nil
}
