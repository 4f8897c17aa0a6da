// Package cryptoutil centralizes the signing, hashing, VRF, and
// verifiable-secret-sharing primitives shared by the claim registry,
// election engine, DKG coordinator, and block pipeline.
package cryptoutil

import (
	"crypto/sha256"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// SHA256Chain iterates SHA-256 over seed exactly iterations times,
// matching Claim.hash's VRF-chain construction (`claim.rs::Claim::new`).
func SHA256Chain(seed []byte, iterations uint64) []byte {
	cur := append([]byte(nil), seed...)
	for i := uint64(0); i < iterations; i++ {
		sum := sha256.Sum256(cur)
		cur = sum[:]
	}
	return cur
}

// SHA256Hex returns the lowercase hex SHA-256 digest of data.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hexString(sum[:])
}

// HexFromBytes renders b as a plain lowercase hex string (no "0x" prefix),
// matching the bare hex encoding the original Rust source stores claim
// hashes as.
func HexFromBytes(b []byte) string {
	return hexString(b)
}

// Keccak256 is used for Merkle-trie node and root hashing (mirrors the
// original `keccak_hash::H256` root type used by `lr_trie`).
func Keccak256(data ...[]byte) [32]byte {
	var out [32]byte
	h := ethcrypto.Keccak256(data...)
	copy(out[:], h)
	return out
}

func hexString(b []byte) string {
	const hextable = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hextable[v>>4]
		out[i*2+1] = hextable[v&0x0f]
	}
	return string(out)
}
