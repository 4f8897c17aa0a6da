// Package claim implements the participant claim registry (C1): the
// stake certificates that make a node eligible for election, grounded on
// `claim/src/claim.rs` and `validator/src/claim_validator.rs`.
package claim

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/vrrb-chain/consensus-core/cryptoutil"
	"github.com/vrrb-chain/consensus-core/primitives"
)

// Eligibility is the tri-state role a claim currently qualifies for.
type Eligibility uint8

const (
	EligibilityNone Eligibility = iota
	EligibilityValidator
	EligibilityMiner
)

func (e Eligibility) String() string {
	switch e {
	case EligibilityMiner:
		return "miner"
	case EligibilityValidator:
		return "validator"
	default:
		return "none"
	}
}

// Minimum stake thresholds gating claim eligibility, mirrored from the
// constants implied by `claim_validator.rs`.
const (
	MinStakeValidator uint64 = 1_000
	MinStakeFarmer    uint64 = 250
)

// StakeEventKind distinguishes a stake deposit from a slash penalty.
type StakeEventKind uint8

const (
	StakeEventStake StakeEventKind = iota
	StakeEventSlash
)

// ThresholdCertificate is the combined signature produced by a quorum
// attesting to a stake event, carried alongside the quorum's public key
// so any node can verify it independently of the claim holder.
type ThresholdCertificate struct {
	Signature   []byte
	QuorumPubkey []byte
}

// StakeEvent records a single stake deposit or slash against a claim.
type StakeEvent struct {
	Kind        StakeEventKind
	Amount      uint64
	Timestamp   int64
	Certificate *ThresholdCertificate
}

// Claim is a participant's stake certificate, grounded on
// `claim/src/claim.rs::Claim`.
type Claim struct {
	Pubkey      []byte
	Address     primitives.Address
	Hash        string
	Nonce       uint64
	Eligibility Eligibility
	StakeEvents []StakeEvent
}

// New constructs a claim whose hash is the SHA-256 chain over pubkey run
// 10*nonce times, matching `Claim::new`.
func New(pubkey []byte, address primitives.Address, nonce uint64) *Claim {
	iters := nonce * 10
	if nonce != 0 && iters/nonce != 10 {
		iters = nonce // overflow guard mirroring the Rust checked_mul fallback
	}
	hash := cryptoutil.SHA256Chain(pubkey, iters)
	return &Claim{
		Pubkey:      append([]byte(nil), pubkey...),
		Address:     address,
		Hash:        cryptoutil.HexFromBytes(hash),
		Nonce:       nonce,
		Eligibility: EligibilityValidator,
	}
}

// NonceUp increments the claim's nonce and recomputes its hash, matching
// `Nonceable::nonce_up`. Only the claim's own owner should call this.
func (c *Claim) NonceUp() {
	c.Nonce++
	iters := c.Nonce * 10
	if c.Nonce != 0 && iters/c.Nonce != 10 {
		iters = c.Nonce
	}
	hash := cryptoutil.SHA256Chain(c.Pubkey, iters)
	c.Hash = cryptoutil.HexFromBytes(hash)
}

// Pointer computes Σ p_i^i across the hex digits of nonce, where p_i is
// the first index of digit i within the claim's hash. Returns (0, false)
// if any digit is absent from the hash, meaning the claim is not
// eligible for this round's election — the kernel of the VRF election
// in `Claim::get_pointer`.
func (c *Claim) Pointer(nonce uint64) (*big.Int, bool) {
	nonceHex := fmt.Sprintf("%x", nonce)
	pointer := new(big.Int)
	for idx, digit := range nonceHex {
		pos := strings.IndexRune(c.Hash, digit)
		if pos < 0 {
			return nil, false
		}
		term := new(big.Int).Exp(big.NewInt(int64(pos)), big.NewInt(int64(idx)), nil)
		pointer.Add(pointer, term)
	}
	return pointer, true
}

// Jailed reports whether the claim's most recent stake event is a
// non-zero slash, matching the Jailed rejection rule in
// `claim_validator.rs`.
func (c *Claim) Jailed() bool {
	if len(c.StakeEvents) == 0 {
		return false
	}
	last := c.StakeEvents[len(c.StakeEvents)-1]
	return last.Kind == StakeEventSlash && last.Amount > 0
}

// TotalStake sums all stake events, subtracting slashes.
func (c *Claim) TotalStake() uint64 {
	var total int64
	for _, ev := range c.StakeEvents {
		switch ev.Kind {
		case StakeEventStake:
			total += int64(ev.Amount)
		case StakeEventSlash:
			total -= int64(ev.Amount)
		}
	}
	if total < 0 {
		return 0
	}
	return uint64(total)
}

// AddStakeEvent appends a stake event, recording it with the current
// wall-clock time.
func (c *Claim) AddStakeEvent(kind StakeEventKind, amount uint64, cert *ThresholdCertificate) {
	c.StakeEvents = append(c.StakeEvents, StakeEvent{
		Kind:        kind,
		Amount:      amount,
		Timestamp:   time.Now().UnixNano(),
		Certificate: cert,
	})
}

// Sentinel errors surfaced by Registry.Insert, matching the
// InvalidClaim{Hash|Stake|Jailed} family in spec.
var (
	ErrInvalidClaimHash  = errors.New("claim: hash does not match pubkey/nonce")
	ErrInvalidClaimStake = errors.New("claim: stake certificate failed verification")
	ErrClaimJailed       = errors.New("claim: claim is jailed")
	ErrNotEligible       = errors.New("claim: claim is not eligible")
)
