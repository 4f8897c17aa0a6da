package claim

import (
	"fmt"

	"github.com/vrrb-chain/consensus-core/cryptoutil"
)

// Validator enforces claim invariants at insertion time, grounded on
// `validator/src/claim_validator.rs::ClaimValidator`.
type Validator struct{}

// NewValidator returns a stateless claim validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks eligibility-gated minimum stake, the jailed-slash rule,
// and every stake event's threshold certificate.
func (v *Validator) Validate(c *Claim) error {
	switch c.Eligibility {
	case EligibilityValidator:
		if c.TotalStake() < MinStakeValidator {
			return fmt.Errorf("%w: validator requires %d, has %d", ErrInvalidClaimStake, MinStakeValidator, c.TotalStake())
		}
	case EligibilityNone:
		return ErrNotEligible
	case EligibilityMiner:
		// No additional minimum beyond eligibility itself.
	}

	if c.Jailed() {
		return ErrClaimJailed
	}

	for i, ev := range c.StakeEvents {
		if ev.Certificate == nil {
			continue
		}
		ok, err := cryptoutil.VerifySignature(ev.Certificate.QuorumPubkey, stakeEventPayload(c, i), ev.Certificate.Signature)
		if err != nil || !ok {
			return fmt.Errorf("%w: stake event %d", ErrInvalidClaimStake, i)
		}
	}

	return nil
}

// VerifyHash recomputes the claim's VRF-chain hash from (pubkey, nonce)
// and compares it against the stored hash, matching the
// independently-verifiable invariant in spec §3.
func (v *Validator) VerifyHash(c *Claim) error {
	iters := c.Nonce * 10
	if c.Nonce != 0 && iters/c.Nonce != 10 {
		iters = c.Nonce
	}
	want := cryptoutil.HexFromBytes(cryptoutil.SHA256Chain(c.Pubkey, iters))
	if want != c.Hash {
		return ErrInvalidClaimHash
	}
	return nil
}

func stakeEventPayload(c *Claim, idx int) []byte {
	ev := c.StakeEvents[idx]
	return fmt.Appendf(nil, "%s:%d:%d:%d", c.Address, ev.Kind, ev.Amount, ev.Timestamp)
}
