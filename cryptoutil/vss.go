package cryptoutil

import (
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Polynomial is a secp256k1-scalar polynomial used for Feldman verifiable
// secret sharing. The original DKG coordinator builds its Part/Ack round
// on hbbft's BLS pairing scheme (`dkg_engine`'s `SyncKeyGen`); no
// pairing-curve library is available in this stack, so the group math is
// rebuilt here over the curve already in use for claim/txn signing
// (`github.com/decred/dcrd/dcrec/secp256k1/v4`), following the standard
// Feldman-VSS construction: coefficients define the secret polynomial,
// and each coefficient is additionally committed to as a curve point so
// that shares can be verified without revealing them.
type Polynomial struct {
	coeffs []secp256k1.ModNScalar
}

// NewPolynomial builds a random polynomial of the given degree whose
// constant term is secret. degree equals threshold-1 for a (threshold,n)
// scheme.
func NewPolynomial(secret secp256k1.ModNScalar, degree int) (*Polynomial, error) {
	coeffs := make([]secp256k1.ModNScalar, degree+1)
	coeffs[0] = secret
	for i := 1; i <= degree; i++ {
		priv, err := secp256k1.GeneratePrivateKey()
		if err != nil {
			return nil, fmt.Errorf("cryptoutil: vss polynomial coeff: %w", err)
		}
		coeffs[i] = priv.Key
	}
	return &Polynomial{coeffs: coeffs}, nil
}

// Threshold is the minimum number of shares needed to reconstruct the
// secret, i.e. degree+1.
func (p *Polynomial) Threshold() int {
	return len(p.coeffs)
}

// Commitments returns the per-coefficient curve-point commitments
// (g^a_0, g^a_1, ..., g^a_t) published alongside Part messages so peers
// can verify shares without learning them.
func (p *Polynomial) Commitments() []secp256k1.JacobianPoint {
	out := make([]secp256k1.JacobianPoint, len(p.coeffs))
	for i, c := range p.coeffs {
		var pt secp256k1.JacobianPoint
		scalar := c
		secp256k1.ScalarBaseMultNonConst(&scalar, &pt)
		out[i] = pt
	}
	return out
}

// Evaluate computes the share f(x) for a given non-zero node index x
// (x must not be zero; index zero would leak the secret).
func (p *Polynomial) Evaluate(x uint32) secp256k1.ModNScalar {
	var xs secp256k1.ModNScalar
	xs.SetInt(x)

	var acc secp256k1.ModNScalar
	acc.SetInt(0)

	var xPow secp256k1.ModNScalar
	xPow.SetInt(1)

	for _, c := range p.coeffs {
		var term secp256k1.ModNScalar
		term.Set(&c)
		term.Mul(&xPow)
		acc.Add(&term)
		xPow.Mul(&xs)
	}
	return acc
}

// VerifyShare checks that share is consistent with the published
// commitments for recipient index x: g^share == sum_i (commitment_i)^(x^i).
// This is the per-(sender,receiver) Ack verification step.
func VerifyShare(share secp256k1.ModNScalar, x uint32, commitments []secp256k1.JacobianPoint) bool {
	var lhs secp256k1.JacobianPoint
	shareCopy := share
	secp256k1.ScalarBaseMultNonConst(&shareCopy, &lhs)
	lhs.ToAffine()

	var xs secp256k1.ModNScalar
	xs.SetInt(x)

	var xPow secp256k1.ModNScalar
	xPow.SetInt(1)

	var rhs secp256k1.JacobianPoint
	rhs.X.SetInt(0)
	rhs.Y.SetInt(0)
	rhs.Z.SetInt(0)
	first := true

	for _, c := range commitments {
		var term secp256k1.JacobianPoint
		power := xPow
		commitment := c
		secp256k1.ScalarMultNonConst(&power, &commitment, &term)
		if first {
			rhs = term
			first = false
		} else {
			var sum secp256k1.JacobianPoint
			secp256k1.AddNonConst(&rhs, &term, &sum)
			rhs = sum
		}
		xPow.Mul(&xs)
	}
	rhs.ToAffine()

	return lhs.X.Equals(&rhs.X) && lhs.Y.Equals(&rhs.Y)
}

// CombineShares reconstructs the group secret (the constant term of the
// aggregate polynomial) from threshold (index, share) pairs via Lagrange
// interpolation at x=0.
func CombineShares(indices []uint32, shares []secp256k1.ModNScalar) (secp256k1.ModNScalar, error) {
	var zero secp256k1.ModNScalar
	if len(indices) != len(shares) || len(indices) == 0 {
		return zero, fmt.Errorf("cryptoutil: combine shares: mismatched or empty input")
	}

	var secret secp256k1.ModNScalar
	secret.SetInt(0)

	for i, xi := range indices {
		var num, den secp256k1.ModNScalar
		num.SetInt(1)
		den.SetInt(1)

		var xiS secp256k1.ModNScalar
		xiS.SetInt(xi)

		for j, xj := range indices {
			if i == j {
				continue
			}
			var xjS secp256k1.ModNScalar
			xjS.SetInt(xj)

			// num *= (0 - xj) = -xj
			negXj := xjS
			negXj.Negate()
			num.Mul(&negXj)

			// den *= (xi - xj)
			diff := xiS
			negXj2 := xjS
			negXj2.Negate()
			diff.Add(&negXj2)
			den.Mul(&diff)
		}

		denInv := den.InverseValNonConst()
		lagrange := num
		lagrange.Mul(denInv)

		term := shares[i]
		term.Mul(&lagrange)
		secret.Add(&term)
	}

	return secret, nil
}

// VerifyGroupSecret reports whether scalar is the discrete log of pub,
// i.e. whether g^scalar == pub. A harvester certificate's combined
// signature verifies this way: only a threshold of harvesters pooling
// their DKG shares could reconstruct the scalar matching the published
// quorum key.
func VerifyGroupSecret(scalar secp256k1.ModNScalar, pub *secp256k1.PublicKey) bool {
	if pub == nil {
		return false
	}
	var pt secp256k1.JacobianPoint
	s := scalar
	secp256k1.ScalarBaseMultNonConst(&s, &pt)
	pt.ToAffine()
	derived := secp256k1.NewPublicKey(&pt.X, &pt.Y)
	return derived.IsEqual(pub)
}

// GroupPublicKeyFromCommitments recovers the group public key (the
// constant-term commitment) published once the DKG round finalizes.
func GroupPublicKeyFromCommitments(constantTermCommitments []secp256k1.JacobianPoint) *secp256k1.PublicKey {
	var sum secp256k1.JacobianPoint
	sum.X.SetInt(0)
	sum.Y.SetInt(0)
	sum.Z.SetInt(0)
	first := true

	for _, c := range constantTermCommitments {
		commitment := c
		if first {
			sum = commitment
			first = false
			continue
		}
		var out secp256k1.JacobianPoint
		secp256k1.AddNonConst(&sum, &commitment, &out)
		sum = out
	}
	sum.ToAffine()
	return secp256k1.NewPublicKey(&sum.X, &sum.Y)
}
