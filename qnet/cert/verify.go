package cert

import (
	"time"

	"github.com/qnet-network/qnet-core/qnet/config"
)

// Outcome reports the result of the per-block verification pipeline
// (spec.md §4.3 "Verification pipeline (per block)").
type Outcome int

const (
	// OutcomeRejected means the block must not be appended.
	OutcomeRejected Outcome = iota
	// OutcomeAcceptedVerified means the certificate was fully PQ-verified
	// before acceptance.
	OutcomeAcceptedVerified
	// OutcomeAcceptedOptimistic means the block is accepted now (optimistic
	// accept) with async verification still pending.
	OutcomeAcceptedOptimistic
	// OutcomePendingMiss means the certificate was not found; the caller
	// must queue the block and request the certificate from peers.
	OutcomePendingMiss
)

// VerifyCompact runs the verification pipeline for a CompactSignature
// against the local cache (spec.md §4.3 steps 1-5). Callers own the
// canonical hash computation (qnet/types); this function takes it as an
// opaque byte slice so the cert package has no dependency on the block
// schema.
func (c *Cache) VerifyCompact(sig CompactSignature, producer string, canonicalHash []byte, now time.Time, params config.Parameters) (Outcome, error) {
	found, tier, ok := c.Lookup(sig.CertSerial)
	if !ok {
		return OutcomePendingMiss, ErrCertMissing
	}

	if err := checkCertValidity(found, producer, now, params); err != nil {
		return OutcomeRejected, err
	}

	if tier == TierPending {
		// Optimistic accept: the certificate's encapsulation has not been
		// verified yet; only the block signatures are checked here and the
		// block is admitted now. The caller completes verification with
		// VerifyEncapsulationAsync followed by Promote or FailPending.
		if err := verifyMessage(found, canonicalHash, sig.Ed25519Sig, sig.DilithiumSig); err != nil {
			return OutcomeRejected, err
		}
		return OutcomeAcceptedOptimistic, nil
	}

	if err := verifyMessage(found, canonicalHash, sig.Ed25519Sig, sig.DilithiumSig); err != nil {
		return OutcomeRejected, err
	}
	return OutcomeAcceptedVerified, nil
}

// VerifyFull runs the self-contained verification pipeline for a
// FullSignature: the certificate is inlined so no cache lookup is needed
// (spec.md §4.3 "Full mode ... enabling self-contained verification
// regardless of cache state").
func VerifyFull(sig FullSignature, producer string, canonicalHash []byte, now time.Time, params config.Parameters) error {
	c := &sig.Certificate
	if err := checkCertValidity(c, producer, now, params); err != nil {
		return err
	}
	if !c.VerifyEncapsulation() {
		return ErrCertInnerSigInvalid
	}
	return verifyMessage(c, canonicalHash, sig.Ed25519Sig, sig.DilithiumSig)
}

// checkCertValidity runs spec.md §4.3 step 2: expiry, clock-skew,
// replay-age, and producer-identity bounds.
func checkCertValidity(c *Certificate, producer string, now time.Time, params config.Parameters) error {
	if now.After(c.ExpiresAt) {
		return ErrCertExpired
	}
	if c.IssuedAt.After(now.Add(params.ClockSkewBound)) {
		return ErrCertFuture
	}
	if now.Sub(c.IssuedAt) > params.CertAgeBound {
		return ErrCertReplay
	}
	if string(c.NodeID) != producer {
		return ErrCertNodeMismatch
	}
	return nil
}

// VerifyEncapsulationAsync performs the full PQ-signature verification of a
// pending certificate's inner binding; callers run this off the hot path
// (spec.md §4.3 "full verification continues asynchronously") and then call
// Cache.Promote or Cache.FailPending with the result.
func VerifyEncapsulationAsync(c *Certificate) bool {
	return c.VerifyEncapsulation()
}
