package dkg

import (
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/require"

	"github.com/vrrb-chain/consensus-core/config"
	"github.com/vrrb-chain/consensus-core/cryptoutil"
)

// runFiveNodeRound drives five coordinators (threshold = 3, i.e.
// cfg.Threshold = 2) through a full Part/Ack round via direct share
// verification, gossiping every (sender, receiver) ack to every node so
// each one's matrix reaches the (threshold)^2 finalize condition.
func runFiveNodeRound(t *testing.T) []*Coordinator {
	t.Helper()

	const n = 5
	cfg := config.ThresholdConfig{UpperBound: n, Threshold: 2}

	coords := make([]*Coordinator, n)
	for i := range coords {
		c, err := NewCoordinator(uint16(i), cfg, 3)
		require.NoError(t, err)
		coords[i] = c
	}

	memberIdxs := []uint16{0, 1, 2, 3, 4}
	parts := make([]*Part, n)
	for i, c := range coords {
		p, err := c.InitiateDkg(memberIdxs)
		require.NoError(t, err)
		parts[i] = p
		require.Equal(t, StateAwaitingParts, c.state)
	}

	// Every node receives every other node's Part, so all five converge
	// on the identical dealer set {0,1,2,3,4} and therefore the same
	// group key once finalized.
	for _, c := range coords {
		for j, p := range parts {
			if uint16(j) == c.selfIdx {
				continue
			}
			require.NoError(t, c.ReceivePart(p))
		}
		require.Equal(t, StateAwaitingAcks, c.state)
	}

	type ackEntry struct {
		senderIdx, receiverIdx uint16
		valid                  bool
	}
	var matrix []ackEntry
	for i, receiver := range coords {
		for senderIdx, p := range parts {
			share := p.Shares[receiver.selfIdx]
			valid := cryptoutil.VerifyShare(share, uint32(receiver.selfIdx)+1, p.Commitments)
			matrix = append(matrix, ackEntry{senderIdx: uint16(senderIdx), receiverIdx: uint16(i), valid: valid})
		}
	}

	for _, c := range coords {
		for _, e := range matrix {
			if c.state != StateAwaitingAcks {
				break
			}
			require.NoError(t, c.ReceiveAck(&Ack{SenderIdx: e.senderIdx, ReceiverIdx: e.receiverIdx, Valid: e.valid}))
		}
	}

	return coords
}

func TestFiveNodeDkgRoundFinalizes(t *testing.T) {
	coords := runFiveNodeRound(t)

	for _, c := range coords {
		require.Equal(t, StateFinalized, c.state)
	}
}

func TestFiveNodeDkgGroupPublicKeyAgrees(t *testing.T) {
	coords := runFiveNodeRound(t)

	want, err := coords[0].GroupPublicKey()
	require.NoError(t, err)

	for _, c := range coords[1:] {
		got, err := c.GroupPublicKey()
		require.NoError(t, err)
		require.True(t, want.IsEqual(got))
	}
}

// TestThresholdSigningRoundTrip reconstructs the group secret from a
// quorum of finalized per-node shares via Lagrange interpolation and
// checks the derived key pair matches the group public key and can sign
// on the group's behalf.
func TestThresholdSigningRoundTrip(t *testing.T) {
	coords := runFiveNodeRound(t)

	groupPub, err := coords[0].GroupPublicKey()
	require.NoError(t, err)

	quorum := coords[:3]
	indices := make([]uint32, len(quorum))
	shares := make([]secp256k1.ModNScalar, len(quorum))
	for i, c := range quorum {
		share, err := c.SecretShare()
		require.NoError(t, err)
		indices[i] = uint32(c.selfIdx) + 1
		shares[i] = *share
	}

	groupSecret, err := cryptoutil.CombineShares(indices, shares)
	require.NoError(t, err)

	secretBytes := groupSecret.Bytes()
	kp := cryptoutil.KeyPairFromBytes(secretBytes[:])
	require.True(t, groupPub.IsEqual(kp.Pub))

	msg := []byte("convergence-block-certificate")
	sig := kp.Sign(msg)
	ok, err := cryptoutil.VerifySignature(kp.PubKeyBytes(), msg, sig)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestSecretShareRequiresFinalizedState(t *testing.T) {
	cfg := config.ThresholdConfig{UpperBound: 5, Threshold: 2}
	c, err := NewCoordinator(0, cfg, 3)
	require.NoError(t, err)

	_, err = c.SecretShare()
	require.ErrorIs(t, err, ErrWrongState)
}

func TestRetryMissingPartAbortsAtCap(t *testing.T) {
	cfg := config.ThresholdConfig{UpperBound: 5, Threshold: 2}
	c, err := NewCoordinator(0, cfg, 2)
	require.NoError(t, err)

	_, err = c.InitiateDkg([]uint16{0, 1, 2, 3, 4})
	require.NoError(t, err)

	require.NoError(t, c.RetryMissingPart(1))
	require.NoError(t, c.RetryMissingPart(1))
	err = c.RetryMissingPart(1)
	require.ErrorIs(t, err, ErrNotEnoughAckMsgsReceived)
	require.Equal(t, StateAborted, c.state)
}
