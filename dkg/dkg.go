// Package dkg implements the synchronous Part/Ack distributed key
// generation coordinator (C3), grounded on the state machine shape of
// `dkg_engine/src/types/mod.rs::{DkgEngine, DkgState}` and
// `dkg_engine/src/dkg_state.rs`, adapted from hbbft's BLS pairing scheme
// to Feldman-VSS over secp256k1 (see DESIGN.md's Open Question on the
// pairing-curve gap).
package dkg

import (
	"errors"
	"fmt"
	"math"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/vrrb-chain/consensus-core/config"
	"github.com/vrrb-chain/consensus-core/cryptoutil"
)

// State enumerates the DKG round's progress, matching spec §4.3's
// Idle -> AwaitingParts -> AwaitingAcks -> Finalized machine.
type State uint8

const (
	StateIdle State = iota
	StateAwaitingParts
	StateAwaitingAcks
	StateFinalized
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingParts:
		return "awaiting_parts"
	case StateAwaitingAcks:
		return "awaiting_acks"
	case StateFinalized:
		return "finalized"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

var (
	ErrPartAlreadyAcknowledged  = errors.New("dkg: part message already acknowledged for this node")
	ErrNotEnoughAckMsgsReceived = errors.New("dkg: not enough ack messages received")
	ErrInvalidPartMessage       = errors.New("dkg: invalid part message")
	ErrInvalidAckMessage        = errors.New("dkg: invalid ack message")
	ErrWrongState               = errors.New("dkg: operation invalid for current state")
)

// Part is a node's commitment to its secret-sharing polynomial, plus the
// cleartext per-receiver shares (the original transports these over an
// authenticated channel; encryption-in-transit is a gossip-layer concern
// out of scope here). Mirrors hbbft's `Part` at the protocol-shape level.
type Part struct {
	SenderIdx   uint16
	Commitments []secp256k1.JacobianPoint
	Shares      map[uint16]secp256k1.ModNScalar
}

// Ack is a receiver's verification result for one sender's Part, keyed
// (sender, receiver) exactly as `ack_message_store: HashMap<(u16,u16), Ack>`.
type Ack struct {
	SenderIdx   uint16
	ReceiverIdx uint16
	Valid       bool
}

type ackKey struct {
	sender, receiver uint16
}

// Coordinator runs one DKG round for a single local node.
type Coordinator struct {
	selfIdx   uint16
	cfg       config.ThresholdConfig
	state     State
	threshold int // t+1, i.e. the number of shares needed to reconstruct

	ownPolynomial *cryptoutil.Polynomial
	partStore     map[uint16]*Part
	ackStore      map[ackKey]*Ack
	ackRetries    map[uint16]int
	ackRetryCap   int

	groupPubkey *secp256k1.PublicKey
	secretShare *secp256k1.ModNScalar
}

// NewCoordinator validates cfg and returns an Idle coordinator for node
// selfIdx. ackRetryCap bounds retries for a Part missing from the ack
// matrix before the round aborts.
func NewCoordinator(selfIdx uint16, cfg config.ThresholdConfig, ackRetryCap int) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Coordinator{
		selfIdx:     selfIdx,
		cfg:         cfg,
		state:       StateIdle,
		threshold:   int(cfg.Threshold) + 1,
		partStore:   make(map[uint16]*Part),
		ackStore:    make(map[ackKey]*Ack),
		ackRetries:  make(map[uint16]int),
		ackRetryCap: ackRetryCap,
	}, nil
}

// State reports the coordinator's current phase.
func (c *Coordinator) State() State {
	return c.state
}

// InitiateDkg moves Idle -> AwaitingParts and generates this node's own
// Part: a random degree-(threshold-1) polynomial, its point commitments,
// and one share per quorum member index.
func (c *Coordinator) InitiateDkg(quorumMemberIdxs []uint16) (*Part, error) {
	if c.state != StateIdle {
		return nil, fmt.Errorf("%w: expected idle, got %s", ErrWrongState, c.state)
	}

	secret, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("dkg: generate secret: %w", err)
	}

	poly, err := cryptoutil.NewPolynomial(secret.Key, c.threshold-1)
	if err != nil {
		return nil, fmt.Errorf("dkg: build polynomial: %w", err)
	}
	c.ownPolynomial = poly

	shares := make(map[uint16]secp256k1.ModNScalar, len(quorumMemberIdxs))
	for _, idx := range quorumMemberIdxs {
		shares[idx] = poly.Evaluate(uint32(idx) + 1)
	}

	part := &Part{
		SenderIdx:   c.selfIdx,
		Commitments: poly.Commitments(),
		Shares:      shares,
	}
	c.partStore[c.selfIdx] = part
	c.state = StateAwaitingParts
	return part, nil
}

// ReceivePart records a peer's Part. Duplicate Parts from the same
// sender are rejected. Once at least threshold distinct Parts are
// stored, the coordinator transitions to AwaitingAcks; Parts may keep
// arriving after that (real networks don't deliver every Part before
// the threshold is met) and are still folded into partStore so every
// node that eventually sees the same dealer set finalizes against the
// same group key.
func (c *Coordinator) ReceivePart(part *Part) error {
	if c.state != StateAwaitingParts && c.state != StateAwaitingAcks {
		return fmt.Errorf("%w: expected awaiting_parts or awaiting_acks, got %s", ErrWrongState, c.state)
	}
	if _, exists := c.partStore[part.SenderIdx]; exists {
		return fmt.Errorf("%w: node %d", ErrPartAlreadyAcknowledged, part.SenderIdx)
	}

	c.partStore[part.SenderIdx] = part

	if c.state == StateAwaitingParts && len(c.partStore) >= c.threshold {
		c.state = StateAwaitingAcks
	}
	return nil
}

// AckOwnShare verifies the share this node received from sender against
// sender's published commitments and records the resulting Ack.
func (c *Coordinator) AckOwnShare(senderIdx uint16) (*Ack, error) {
	if c.state != StateAwaitingAcks {
		return nil, fmt.Errorf("%w: expected awaiting_acks, got %s", ErrWrongState, c.state)
	}
	part, ok := c.partStore[senderIdx]
	if !ok {
		return nil, fmt.Errorf("%w: no part stored for sender %d", ErrInvalidPartMessage, senderIdx)
	}
	share, ok := part.Shares[c.selfIdx]
	if !ok {
		return nil, fmt.Errorf("%w: no share for receiver %d", ErrInvalidPartMessage, c.selfIdx)
	}

	valid := cryptoutil.VerifyShare(share, uint32(c.selfIdx)+1, part.Commitments)
	ack := &Ack{SenderIdx: senderIdx, ReceiverIdx: c.selfIdx, Valid: valid}
	return ack, c.ReceiveAck(ack)
}

// ReceiveAck records an Ack (possibly our own or a peer's gossiped ack)
// and checks the finalization threshold: (t+1)^2 total acks.
func (c *Coordinator) ReceiveAck(ack *Ack) error {
	if c.state != StateAwaitingAcks {
		return fmt.Errorf("%w: expected awaiting_acks, got %s", ErrWrongState, c.state)
	}
	if !ack.Valid {
		return fmt.Errorf("%w: sender %d rejected by receiver %d", ErrInvalidAckMessage, ack.SenderIdx, ack.ReceiverIdx)
	}

	key := ackKey{sender: ack.SenderIdx, receiver: ack.ReceiverIdx}
	c.ackStore[key] = ack

	needed := int(math.Pow(float64(c.threshold), 2))
	if len(c.ackStore) >= needed {
		return c.finalize()
	}
	return nil
}

// RetryMissingPart increments the retry counter for senderIdx and
// aborts the round with ErrNotEnoughAckMsgsReceived once the counter
// exceeds the cap,
// matching spec §4.3's bounded-retry-then-abort rule.
func (c *Coordinator) RetryMissingPart(senderIdx uint16) error {
	c.ackRetries[senderIdx]++
	if c.ackRetries[senderIdx] > c.ackRetryCap {
		c.state = StateAborted
		return ErrNotEnoughAckMsgsReceived
	}
	return nil
}

// finalize derives this node's share of the joint secret F(x) = Σ_j
// f_j(x) by summing every dealer's contribution at this node's own
// index: F(selfIdx+1) = Σ_j f_j(selfIdx+1). Lagrange interpolation has
// no role here — each dealer's f_j(selfIdx+1) is already a point on the
// summed polynomial at the same x, so they combine by addition. (A
// quorum of t+1 such per-node shares is later combined via
// cryptoutil.CombineShares to recover F(0), the group secret, for
// threshold signing.)
func (c *Coordinator) finalize() error {
	var secretShare secp256k1.ModNScalar
	secretShare.SetInt(0)

	constantCommitments := make([]secp256k1.JacobianPoint, 0, len(c.partStore))

	for _, part := range c.partStore {
		share, ok := part.Shares[c.selfIdx]
		if !ok {
			continue
		}
		secretShare.Add(&share)
		constantCommitments = append(constantCommitments, part.Commitments[0])
	}

	c.secretShare = &secretShare
	c.groupPubkey = cryptoutil.GroupPublicKeyFromCommitments(constantCommitments)
	c.state = StateFinalized
	return nil
}

// SecretShare returns this node's finalized secret key share.
func (c *Coordinator) SecretShare() (*secp256k1.ModNScalar, error) {
	if c.state != StateFinalized {
		return nil, fmt.Errorf("%w: round not finalized", ErrWrongState)
	}
	return c.secretShare, nil
}

// GroupPublicKey returns the finalized group public key.
func (c *Coordinator) GroupPublicKey() (*secp256k1.PublicKey, error) {
	if c.state != StateFinalized {
		return nil, fmt.Errorf("%w: round not finalized", ErrWrongState)
	}
	return c.groupPubkey, nil
}

// QuorumID derives the quorum's stable identifier by hashing the group
// public key, matching "The group public key is hashed to form the
// QuorumId" in spec §4.3.
func (c *Coordinator) QuorumID() (string, error) {
	pub, err := c.GroupPublicKey()
	if err != nil {
		return "", err
	}
	digest := cryptoutil.Keccak256(pub.SerializeCompressed())
	return cryptoutil.HexFromBytes(digest[:]), nil
}
