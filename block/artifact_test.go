package block

import (
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/require"
)

// TestVerifyConvergenceBlockRejectsMissingCertificate mirrors "a
// convergence block with no certificate fails verification", matching
// the commit engine's dependency on block.Verify to gate DAG admission:
// a certificate-less block must never reach AddConvergence/Commit.
func TestVerifyConvergenceBlockRejectsMissingCertificate(t *testing.T) {
	cb := &ConvergenceBlock{
		RefHash: "cb1",
		Header:  Header{Height: 1, BlockSeed: 7},
	}

	err := Verify(Artifact{Kind: ArtifactConvergenceBlock, ConvergenceBlock: cb}, Context{})
	require.ErrorIs(t, err, ErrConvergenceCertificate)
}

// TestVerifyConvergenceBlockRejectsCertificateWithoutQuorumKey mirrors a
// certificate whose combined signature was never matched against a
// published group key.
func TestVerifyConvergenceBlockRejectsCertificateWithoutQuorumKey(t *testing.T) {
	cb := &ConvergenceBlock{
		RefHash: "cb1",
		Header:  Header{Height: 1, BlockSeed: 7},
		Certificate: &Certificate{
			CombinedSignature: secp256k1.ModNScalar{},
		},
	}

	err := Verify(Artifact{Kind: ArtifactConvergenceBlock, ConvergenceBlock: cb}, Context{})
	require.ErrorIs(t, err, ErrConvergenceCertificate)
}

// TestVerifyConvergenceBlockRejectsUnreconstructedSignature mirrors a
// certificate whose combined signature is not actually the discrete log
// of its stated quorum key — e.g. a forged or mismatched scalar, as
// opposed to one genuinely reconstructed from a threshold of harvester
// shares.
func TestVerifyConvergenceBlockRejectsUnreconstructedSignature(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	other, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	cb := &ConvergenceBlock{
		RefHash: "cb1",
		Header:  Header{Height: 1, BlockSeed: 7},
		Certificate: &Certificate{
			CombinedSignature: other.Key,
			QuorumPubkey:      priv.PubKey(),
		},
	}

	err = Verify(Artifact{Kind: ArtifactConvergenceBlock, ConvergenceBlock: cb}, Context{})
	require.ErrorIs(t, err, ErrConvergenceCertificate)
}

func TestVerifyConvergenceBlockAcceptsValidCertificate(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	cb := &ConvergenceBlock{
		RefHash: "cb1",
		Header:  Header{Height: 1, BlockSeed: 7},
		Certificate: &Certificate{
			CombinedSignature: priv.Key,
			QuorumPubkey:      priv.PubKey(),
		},
	}

	require.NoError(t, Verify(Artifact{Kind: ArtifactConvergenceBlock, ConvergenceBlock: cb}, Context{}))

	// A stated quorum key that doesn't match the elected harvester quorum
	// must be rejected even if the certificate is internally consistent.
	elected, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	err = Verify(Artifact{Kind: ArtifactConvergenceBlock, ConvergenceBlock: cb}, Context{HarvesterQuorumPubkey: elected.PubKey().SerializeCompressed()})
	require.ErrorIs(t, err, ErrConvergenceCertificate)
}

func TestVerifyRejectsKindFieldMismatch(t *testing.T) {
	err := Verify(Artifact{Kind: ArtifactConvergenceBlock, ConvergenceBlock: nil}, Context{})
	require.ErrorIs(t, err, ErrArtifactMismatch)
}
