package claim

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vrrb-chain/consensus-core/primitives"
)

func eligibleClaim(t *testing.T, pubkey string, nonce uint64) *Claim {
	t.Helper()
	c := New([]byte(pubkey), primitives.Address(pubkey), nonce)
	c.AddStakeEvent(StakeEventStake, MinStakeValidator, nil)
	return c
}

func TestRegistryInsertNotVisibleUntilPublish(t *testing.T) {
	r := NewRegistry(NewValidator())
	c := eligibleClaim(t, "node-1", 1)

	require.NoError(t, r.Insert(primitives.NodeId("node-1"), c))

	handle := r.ReadHandleFactory().Handle()
	require.True(t, handle.IsEmpty())

	r.Publish()

	handle = r.ReadHandleFactory().Handle()
	require.False(t, handle.IsEmpty())
	got, ok := handle.Get(primitives.NodeId("node-1"))
	require.True(t, ok)
	require.Equal(t, c.Hash, got.Hash)
}

func TestRegistryRejectsBadHash(t *testing.T) {
	r := NewRegistry(NewValidator())
	c := eligibleClaim(t, "node-2", 1)
	c.Hash = "corrupted"

	err := r.Insert(primitives.NodeId("node-2"), c)
	require.ErrorIs(t, err, ErrInvalidClaimHash)
}

func TestRegistryRejectsUnderStaked(t *testing.T) {
	r := NewRegistry(NewValidator())
	c := New([]byte("node-3"), primitives.Address("node-3"), 1)

	err := r.Insert(primitives.NodeId("node-3"), c)
	require.ErrorIs(t, err, ErrInvalidClaimStake)
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry(NewValidator())
	c := eligibleClaim(t, "node-4", 1)
	require.NoError(t, r.Insert(primitives.NodeId("node-4"), c))
	r.Publish()

	r.Remove(primitives.NodeId("node-4"))
	r.Publish()

	handle := r.ReadHandleFactory().Handle()
	require.True(t, handle.IsEmpty())
}
