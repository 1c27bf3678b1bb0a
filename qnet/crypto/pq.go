package crypto

import (
	"crypto/rand"
	"fmt"

	"github.com/cloudflare/circl/sign/dilithium"
)

// pqMode is the lattice-based signature scheme used throughout the node:
// Dilithium3, NIST Level-3-equivalent strength, ~1952B public key, ~4000B
// secret key, ~2420B signature (spec.md §4.1). circl's exact byte sizes are
// read from the mode rather than hardcoded, since the "~" in spec.md signals
// the numbers are nominal, not exact wire constants.
var pqMode = dilithium.Mode3

// PQPublicKey is a lattice-based public key.
type PQPublicKey struct {
	inner dilithium.PublicKey
}

// PQPrivateKey is a lattice-based secret key. Call Zeroize when done.
type PQPrivateKey struct {
	inner dilithium.PrivateKey
	raw   []byte // retained only so Zeroize can wipe it
}

// PQKeySizes reports the nominal byte sizes of the configured PQ scheme.
func PQKeySizes() (pub, priv, sig int) {
	return pqMode.PublicKeySize(), pqMode.PrivateKeySize(), pqMode.SignatureSize()
}

// PQGenerateKey creates a fresh lattice keypair.
func PQGenerateKey() (PQPublicKey, *PQPrivateKey, error) {
	pub, priv, err := pqMode.GenerateKey(rand.Reader)
	if err != nil {
		return PQPublicKey{}, nil, fmt.Errorf("crypto: pq keygen: %w", err)
	}
	return PQPublicKey{inner: pub}, &PQPrivateKey{inner: priv, raw: priv.Bytes()}, nil
}

// PQKeyFromSeed deterministically derives a keypair from a 32-byte seed, as
// used by the Key Manager (spec.md §4.2) to regenerate the same keypair for
// a given node_id across restarts without persisting the expanded key.
func PQKeyFromSeed(seed []byte) (PQPublicKey, *PQPrivateKey, error) {
	if len(seed) != pqMode.SeedSize() {
		return PQPublicKey{}, nil, fmt.Errorf("%w: seed must be %d bytes, got %d", ErrInvalidKeyLength, pqMode.SeedSize(), len(seed))
	}
	pub, priv := pqMode.NewKeyFromSeed(seed)
	return PQPublicKey{inner: pub}, &PQPrivateKey{inner: priv, raw: priv.Bytes()}, nil
}

// PQPublicKeyFromBytes parses a serialized public key.
func PQPublicKeyFromBytes(b []byte) (PQPublicKey, error) {
	if len(b) != pqMode.PublicKeySize() {
		return PQPublicKey{}, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidKeyLength, pqMode.PublicKeySize(), len(b))
	}
	pub := pqMode.PublicKeyFromBytes(b)
	return PQPublicKey{inner: pub}, nil
}

// Bytes serializes the public key.
func (k PQPublicKey) Bytes() []byte {
	if k.inner == nil {
		return nil
	}
	return k.inner.Bytes()
}

// PQSign signs msg with the lattice secret key.
func PQSign(sk *PQPrivateKey, msg []byte) ([]byte, error) {
	if sk == nil || sk.inner == nil {
		return nil, fmt.Errorf("%w: nil secret key", ErrInvalidKeyLength)
	}
	return pqMode.Sign(sk.inner, msg), nil
}

// PQVerify verifies a lattice signature against a public key.
func PQVerify(pk PQPublicKey, msg, sig []byte) bool {
	if pk.inner == nil {
		return false
	}
	if len(sig) != pqMode.SignatureSize() {
		return false
	}
	return pqMode.Verify(pk.inner, msg, sig)
}

// Zeroize wipes the secret key material. Must be called before the key
// manager returns from any function holding a PQPrivateKey that should not
// outlive the call (spec.md §4.1, §5 "Memory discipline").
func (sk *PQPrivateKey) Zeroize() {
	if sk == nil {
		return
	}
	for i := range sk.raw {
		sk.raw[i] = 0
	}
	sk.inner = nil
}
