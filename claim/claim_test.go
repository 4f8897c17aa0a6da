package claim

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vrrb-chain/consensus-core/primitives"
)

func TestClaimHashRecomputation(t *testing.T) {
	pubkey := []byte("deterministic-pubkey-bytes")
	c := New(pubkey, primitives.Address("addr-1"), 7)

	v := NewValidator()
	require.NoError(t, v.VerifyHash(c))

	// Tampering with the stored hash must be detected.
	tampered := *c
	tampered.Hash = "0000"
	require.ErrorIs(t, v.VerifyHash(&tampered), ErrInvalidClaimHash)
}

func TestClaimNonceUpRecomputesHash(t *testing.T) {
	c := New([]byte("pubkey"), primitives.Address("addr-2"), 1)
	before := c.Hash

	c.NonceUp()

	require.NotEqual(t, before, c.Hash)
	require.Equal(t, uint64(2), c.Nonce)
	require.NoError(t, NewValidator().VerifyHash(c))
}

func TestClaimPointerDeterministic(t *testing.T) {
	c := New([]byte("pointer-pubkey"), primitives.Address("addr-3"), 3)

	p1, ok1 := c.Pointer(42)
	p2, ok2 := c.Pointer(42)
	require.True(t, ok1)
	require.True(t, ok2)
	require.Zero(t, p1.Cmp(p2))

	// A different seed is not guaranteed to produce the same pointer.
	p3, ok3 := c.Pointer(43)
	if ok3 {
		require.NotNil(t, p3)
	}
}

func TestClaimPointerMissingDigitIsIneligible(t *testing.T) {
	c := &Claim{Hash: "abc"}
	// Hex digit 'f' never occurs in "abc", so every seed containing it is
	// rejected.
	_, ok := c.Pointer(0xf)
	require.False(t, ok)
}

func TestClaimJailedAfterSlash(t *testing.T) {
	c := New([]byte("jailed-pubkey"), primitives.Address("addr-4"), 0)
	require.False(t, c.Jailed())

	c.AddStakeEvent(StakeEventSlash, 10, nil)
	require.True(t, c.Jailed())

	c.AddStakeEvent(StakeEventStake, 10, nil)
	require.False(t, c.Jailed())
}

func TestClaimTotalStakeNeverNegative(t *testing.T) {
	c := New([]byte("stake-pubkey"), primitives.Address("addr-5"), 0)
	c.AddStakeEvent(StakeEventStake, 100, nil)
	c.AddStakeEvent(StakeEventSlash, 500, nil)
	require.Equal(t, uint64(0), c.TotalStake())
}
