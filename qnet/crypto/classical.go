package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
)

// Classical signature sizes, normative per spec.md §4.1: 32B public key, 64B
// signature. Ed25519 is used directly from the standard library: it is
// already the exact primitive the spec names, and neither the teacher nor
// any other repo in the retrieval pack wraps Ed25519 in a third-party
// library for this role (see DESIGN.md).
const (
	ClassicalPublicKeySize = ed25519.PublicKeySize
	ClassicalSignatureSize = ed25519.SignatureSize
	classicalSeedSize      = ed25519.SeedSize
)

// ClassicalGenerateKey creates a fresh ephemeral classical keypair, as used
// to mint a new Certificate's ed25519_public_key (spec.md §4.3).
func ClassicalGenerateKey() (pub ed25519.PublicKey, priv ed25519.PrivateKey, err error) {
	return ed25519.GenerateKey(rand.Reader)
}

// ClassicalKeyFromSeed derives a keypair deterministically from a 32-byte seed.
func ClassicalKeyFromSeed(seed []byte) (ed25519.PublicKey, ed25519.PrivateKey, error) {
	if len(seed) != classicalSeedSize {
		return nil, nil, fmt.Errorf("%w: seed must be %d bytes, got %d", ErrInvalidKeyLength, classicalSeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return priv.Public().(ed25519.PublicKey), priv, nil
}

// ClassicalSign signs msg with the classical secret key.
func ClassicalSign(sk ed25519.PrivateKey, msg []byte) ([]byte, error) {
	if len(sk) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidKeyLength, ed25519.PrivateKeySize, len(sk))
	}
	return ed25519.Sign(sk, msg), nil
}

// ClassicalVerify verifies a classical signature.
func ClassicalVerify(pk ed25519.PublicKey, msg, sig []byte) bool {
	if len(pk) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pk, msg, sig)
}

// ZeroizeClassicalKey overwrites a classical secret key in place. Certificate
// issuance (spec.md §4.3) mints a classical keypair per certificate and hands
// the secret key back to the caller, which keeps it to sign blocks; the
// cert.Manager zeroizes a key only when a later rotation retires the
// certificate it belongs to, so the current and previous keys stay in memory.
func ZeroizeClassicalKey(sk ed25519.PrivateKey) {
	for i := range sk {
		sk[i] = 0
	}
}
