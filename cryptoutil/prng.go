package cryptoutil

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/chacha20"
)

// SeededRNG is a deterministic byte stream derived from a 32-byte seed,
// grounded on `vrrb_vrf/src/vvrf.rs`'s `ChaCha20Rng::from_seed(hash)`
// construction. The same seed always yields the same stream, which is
// what lets every quorum member recompute an identical election ordering
// from a shared VRF output.
type SeededRNG struct {
	cipher *chacha20.Cipher
}

// NewSeededRNG derives a ChaCha20 keystream from seed. seed is hashed down
// to 32 bytes first so callers can pass VRF beta outputs of any length.
func NewSeededRNG(seed []byte) (*SeededRNG, error) {
	key := SHA256Chain(seed, 1)
	var nonce [chacha20.NonceSize]byte
	c, err := chacha20.NewUnauthenticatedCipher(key, nonce[:])
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: seeded rng: %w", err)
	}
	return &SeededRNG{cipher: c}, nil
}

// Bytes fills and returns n pseudorandom bytes drawn from the stream.
func (r *SeededRNG) Bytes(n int) []byte {
	out := make([]byte, n)
	r.cipher.XORKeyStream(out, out)
	return out
}

// Uint64 draws the next 8 bytes of the stream as a big-endian uint64.
func (r *SeededRNG) Uint64() uint64 {
	return binary.BigEndian.Uint64(r.Bytes(8))
}

// Intn draws a value in [0, n) using the stream, rejecting biased tail
// values so the result is uniform over n.
func (r *SeededRNG) Intn(n int) int {
	if n <= 0 {
		panic("cryptoutil: Intn called with n <= 0")
	}
	max := (^uint64(0) / uint64(n)) * uint64(n)
	for {
		v := r.Uint64()
		if v < max {
			return int(v % uint64(n))
		}
	}
}

// Shuffle permutes indices [0, n) in place using a Fisher-Yates shuffle
// driven by the deterministic stream, used to derive a reproducible
// candidate ordering for quorum election.
func (r *SeededRNG) Shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		swap(i, j)
	}
}
