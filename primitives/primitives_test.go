package primitives

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vrrb-chain/consensus-core/cryptoutil"
)

func TestFingerprintRoundTripsA32ByteDigest(t *testing.T) {
	digest := cryptoutil.Keccak256([]byte("convergence-block"))
	hexDigest := HexString(digest[:])[2:] // strip the "0x" HexString adds

	id, err := Fingerprint(hexDigest)
	require.NoError(t, err)
	require.Equal(t, digest[:], id[:])
}

func TestFingerprintAcceptsA0xPrefix(t *testing.T) {
	digest := cryptoutil.Keccak256([]byte("prefixed"))
	id, err := Fingerprint(HexString(digest[:]))
	require.NoError(t, err)
	require.Equal(t, digest[:], id[:])
}

func TestFingerprintRejectsShortDigest(t *testing.T) {
	_, err := Fingerprint("genesis")
	require.Error(t, err)
}

func TestFingerprintRejectsMalformedHex(t *testing.T) {
	_, err := Fingerprint("0xzz")
	require.Error(t, err)
}

func TestAddressValidateRejectsEmpty(t *testing.T) {
	require.Error(t, Address("").Validate())
	require.NoError(t, Address("alice").Validate())
}
