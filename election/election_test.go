package election

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vrrb-chain/consensus-core/claim"
	"github.com/vrrb-chain/consensus-core/primitives"
)

// buildEligibleClaims returns n claims whose hashes are rotations of the
// full hex alphabet, so every claim yields a valid pointer for any seed.
// Claims whose indices differ by 16 share a hash and so a pointer sum.
func buildEligibleClaims(n int) map[primitives.NodeId]*claim.Claim {
	const alphabet = "0123456789abcdef"
	out := make(map[primitives.NodeId]*claim.Claim, n)
	for i := 0; i < n; i++ {
		rot := i % len(alphabet)
		shifted := alphabet[rot:] + alphabet[:rot]
		hash := shifted + shifted + shifted + shifted

		id := primitives.NodeId(fmt.Sprintf("node-%02d", i))
		out[id] = &claim.Claim{
			Pubkey:      []byte(id),
			Address:     primitives.Address(id),
			Hash:        hash,
			Nonce:       uint64(i),
			Eligibility: claim.EligibilityValidator,
		}
	}
	return out
}

func TestElectQuorumDeterministicAcrossIdenticalInput(t *testing.T) {
	const seed = uint64(0xabc123)

	r1, err := ElectQuorum(buildEligibleClaims(24), seed)
	require.NoError(t, err)
	r2, err := ElectQuorum(buildEligibleClaims(24), seed)
	require.NoError(t, err)

	require.Equal(t, r1.Harvesters, r2.Harvesters)
	require.Equal(t, r1.Farmers, r2.Farmers)
	require.Equal(t, seed, r1.Seed)
}

func TestElectQuorumPartitionsWithoutOverlap(t *testing.T) {
	r, err := ElectQuorum(buildEligibleClaims(24), 42)
	require.NoError(t, err)

	seen := make(map[primitives.NodeId]struct{}, len(r.Harvesters)+len(r.Farmers))
	for _, id := range r.Harvesters {
		seen[id] = struct{}{}
	}
	for _, id := range r.Farmers {
		_, dup := seen[id]
		require.False(t, dup, "farmer %s also retained as harvester", id)
		seen[id] = struct{}{}
	}
	require.NotEmpty(t, seen)
}

func TestElectQuorumInsufficientNodes(t *testing.T) {
	_, err := ElectQuorum(buildEligibleClaims(5), 1)
	require.ErrorIs(t, err, ErrInsufficientNodes)
}

func TestElectMinerDeterministicAcrossIdenticalInput(t *testing.T) {
	claims := buildEligibleClaims(10)
	for _, c := range claims {
		c.Eligibility = claim.EligibilityMiner
	}

	r1, err := ElectMiner(claims, 7)
	require.NoError(t, err)
	r2, err := ElectMiner(claims, 7)
	require.NoError(t, err)

	require.Equal(t, r1.WinnerID, r2.WinnerID)
	require.Zero(t, r1.WinningInteger.Cmp(r2.WinningInteger))
}

func TestElectMinerNoCandidates(t *testing.T) {
	claims := buildEligibleClaims(3)
	_, err := ElectMiner(claims, 1)
	require.ErrorIs(t, err, ErrNoMinerCandidates)
}
