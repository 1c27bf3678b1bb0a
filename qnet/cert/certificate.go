// Package cert implements the hybrid signature & certificate layer (C3):
// compact signatures for microblocks (cert referenced by serial) and full
// signatures for macroblocks (cert inlined), a two-tier certificate cache
// with optimistic accept, and the verification pipeline of spec.md §4.3.
//
// Grounded on ringtail/certificate.go's CertBundle/Certificate/
// CertificateManager shape from the teacher, generalized from a
// threshold-share bundle to the single-issuer certificate spec.md describes.
package cert

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/qnet-network/qnet-core/ids"
	"github.com/qnet-network/qnet-core/qnet/config"
	"github.com/qnet-network/qnet-core/qnet/crypto"
)

// Certificate binds a node's ephemeral classical signing key to its
// long-lived post-quantum key (spec.md §3 "Certificate").
type Certificate struct {
	NodeID                ids.NodeID
	Ed25519PublicKey       ed25519.PublicKey // 32B
	DilithiumPublicKey     crypto.PQPublicKey // ~1952B
	DilithiumSigOfEd25519  []byte            // ~2420B, PQ-signed encapsulation
	SerialNumber           string
	IssuedAt               time.Time
	ExpiresAt              time.Time
}

// encapsulate builds the canonical payload the PQ key signs to bind the
// classical key: ed25519_public_key ∥ node_id ∥ issued_at (spec.md §3, §4.3).
func encapsulate(ed25519PubKey []byte, nodeID ids.NodeID, issuedAt time.Time) []byte {
	buf := make([]byte, 0, len(ed25519PubKey)+len(nodeID)+8)
	buf = append(buf, ed25519PubKey...)
	buf = append(buf, []byte(nodeID)...)
	var tsBuf [8]byte
	putUint64LE(tsBuf[:], uint64(issuedAt.Unix()))
	buf = append(buf, tsBuf[:]...)
	return buf
}

func putUint64LE(b []byte, v uint64) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
	b[4] = byte(v >> 32)
	b[5] = byte(v >> 40)
	b[6] = byte(v >> 48)
	b[7] = byte(v >> 56)
}

// Issue mints a new Certificate for nodeID: a fresh ephemeral classical
// keypair bound to the node's long-lived PQ key via a PQ signature over the
// encapsulation (spec.md §4.3 "Certificate issuance").
//
// The returned ed25519.PrivateKey is the caller's to hold (it signs compact/
// full block signatures); it must be zeroized by the caller once the
// certificate it belongs to has expired and been rotated out.
func Issue(nodeID ids.NodeID, pqPub crypto.PQPublicKey, pqPriv *crypto.PQPrivateKey, serial string, issuedAt time.Time, lifetime time.Duration) (*Certificate, ed25519.PrivateKey, error) {
	edPub, edPriv, err := crypto.ClassicalGenerateKey()
	if err != nil {
		return nil, nil, fmt.Errorf("cert: issue: generate classical key: %w", err)
	}

	payload := encapsulate(edPub, nodeID, issuedAt)
	sig, err := crypto.PQSign(pqPriv, payload)
	if err != nil {
		return nil, nil, fmt.Errorf("cert: issue: pq sign encapsulation: %w", err)
	}

	c := &Certificate{
		NodeID:                nodeID,
		Ed25519PublicKey:      edPub,
		DilithiumPublicKey:    pqPub,
		DilithiumSigOfEd25519: sig,
		SerialNumber:          serial,
		IssuedAt:              issuedAt,
		ExpiresAt:             issuedAt.Add(lifetime),
	}
	return c, edPriv, nil
}

// VerifyEncapsulation checks the PQ signature binding the certificate's
// classical key to its node identity (spec.md §4.3 step 3, testable
// property §8.7).
func (c *Certificate) VerifyEncapsulation() bool {
	payload := encapsulate(c.Ed25519PublicKey, c.NodeID, c.IssuedAt)
	return crypto.PQVerify(c.DilithiumPublicKey, payload, c.DilithiumSigOfEd25519)
}

// ShouldRotate reports whether a new certificate should be issued: at or
// past 80% of the certificate's lifetime (spec.md §4.3, §6 CERT_ROTATION).
func (c *Certificate) ShouldRotate(now time.Time, params config.Parameters) bool {
	rotateAt := c.IssuedAt.Add(params.CertRotation)
	return !now.Before(rotateAt)
}

// Expired reports whether the certificate's validity window has elapsed.
func (c *Certificate) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// OverlapsGraceBound reports whether two certs for the same node have valid
// windows overlapping by more than the grace period (spec.md §8.8 "Rotation
// safety": no two simultaneously-valid certs overlap by more than
// CERT_GRACE).
func OverlapsGraceBound(a, b *Certificate, grace time.Duration) bool {
	if a.NodeID != b.NodeID {
		return false
	}
	lo, hi := a, b
	if lo.IssuedAt.After(hi.IssuedAt) {
		lo, hi = hi, lo
	}
	overlapEnd := lo.ExpiresAt
	if hi.ExpiresAt.Before(overlapEnd) {
		overlapEnd = hi.ExpiresAt
	}
	overlap := overlapEnd.Sub(hi.IssuedAt)
	return overlap > grace
}
