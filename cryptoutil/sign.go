package cryptoutil

import (
	"crypto/sha256"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// KeyPair is a secp256k1 signing identity, grounded on the ECDSA signing
// scheme used throughout the original Rust source (`secp256k1::Message`,
// `SecretKey`).
type KeyPair struct {
	Priv *secp256k1.PrivateKey
	Pub  *secp256k1.PublicKey
}

// GenerateKeyPair creates a new random signing identity.
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: generate key: %w", err)
	}
	return &KeyPair{Priv: priv, Pub: priv.PubKey()}, nil
}

// KeyPairFromBytes reconstructs a KeyPair from a 32-byte scalar.
func KeyPairFromBytes(b []byte) *KeyPair {
	priv := secp256k1.PrivKeyFromBytes(b)
	return &KeyPair{Priv: priv, Pub: priv.PubKey()}
}

// PubKeyBytes returns the compressed public key encoding.
func (k *KeyPair) PubKeyBytes() []byte {
	return k.Pub.SerializeCompressed()
}

// Sign signs the SHA-256 digest of payload, matching
// `TxnValidator::validate_signature`'s canonical hash-then-sign shape.
func (k *KeyPair) Sign(payload []byte) []byte {
	digest := sha256.Sum256(payload)
	sig := ecdsa.Sign(k.Priv, digest[:])
	return sig.Serialize()
}

// VerifySignature verifies sig over the SHA-256 digest of payload against
// the given compressed public key bytes.
func VerifySignature(pubKeyBytes, payload, sig []byte) (bool, error) {
	pub, err := secp256k1.ParsePubKey(pubKeyBytes)
	if err != nil {
		return false, fmt.Errorf("cryptoutil: parse pubkey: %w", err)
	}

	parsed, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return false, fmt.Errorf("cryptoutil: parse signature: %w", err)
	}

	digest := sha256.Sum256(payload)
	return parsed.Verify(digest[:], pub), nil
}
