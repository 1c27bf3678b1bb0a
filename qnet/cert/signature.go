package cert

import (
	"crypto/ed25519"
	"time"

	"github.com/qnet-network/qnet-core/ids"
	"github.com/qnet-network/qnet-core/qnet/crypto"
)

// CompactSignature authenticates a microblock by referencing the signer's
// current certificate by serial; verifiers must resolve the serial via
// their certificate cache (spec.md §3, §4.3 "Compact mode").
type CompactSignature struct {
	NodeID       ids.NodeID
	CertSerial   string
	Ed25519Sig   []byte // 64B
	DilithiumSig []byte // ~2420B
	SignedAt     time.Time
}

// FullSignature authenticates a macroblock with the same two message
// signatures plus an inlined Certificate, making verification self-contained
// regardless of cache state (spec.md §3, §4.3 "Full mode").
type FullSignature struct {
	NodeID       ids.NodeID
	Certificate  Certificate
	Ed25519Sig   []byte
	DilithiumSig []byte
	SignedAt     time.Time
}

// SignCompact produces a CompactSignature over canonicalHash using the
// node's current certificate and matching secret keys (spec.md §4.3).
func SignCompact(nodeID ids.NodeID, c *Certificate, edPriv ed25519.PrivateKey, pqPriv *crypto.PQPrivateKey, canonicalHash []byte, now time.Time) (CompactSignature, error) {
	edSig, err := crypto.ClassicalSign(edPriv, canonicalHash)
	if err != nil {
		return CompactSignature{}, err
	}
	pqSig, err := crypto.PQSign(pqPriv, canonicalHash)
	if err != nil {
		return CompactSignature{}, err
	}
	return CompactSignature{
		NodeID:       nodeID,
		CertSerial:   c.SerialNumber,
		Ed25519Sig:   edSig,
		DilithiumSig: pqSig,
		SignedAt:     now,
	}, nil
}

// SignFull produces a FullSignature over canonicalHash, inlining the
// certificate so the macroblock is self-contained (spec.md §4.3 "Full mode").
func SignFull(nodeID ids.NodeID, c *Certificate, edPriv ed25519.PrivateKey, pqPriv *crypto.PQPrivateKey, canonicalHash []byte, now time.Time) (FullSignature, error) {
	edSig, err := crypto.ClassicalSign(edPriv, canonicalHash)
	if err != nil {
		return FullSignature{}, err
	}
	pqSig, err := crypto.PQSign(pqPriv, canonicalHash)
	if err != nil {
		return FullSignature{}, err
	}
	return FullSignature{
		NodeID:       nodeID,
		Certificate:  *c,
		Ed25519Sig:   edSig,
		DilithiumSig: pqSig,
		SignedAt:     now,
	}, nil
}

// verifyMessage runs steps 4-5 of the verification pipeline (spec.md §4.3):
// both the classical and PQ signatures must verify against the certificate's
// keys over the canonical block hash.
func verifyMessage(c *Certificate, canonicalHash, edSig, pqSig []byte) error {
	if !crypto.ClassicalVerify(c.Ed25519PublicKey, canonicalHash, edSig) {
		return ErrBlockClassicalSigInvalid
	}
	if !crypto.PQVerify(c.DilithiumPublicKey, canonicalHash, pqSig) {
		return ErrBlockPqSigInvalid
	}
	return nil
}
