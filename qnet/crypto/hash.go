package crypto

import (
	"golang.org/x/crypto/sha3"

	"github.com/zeebo/blake3"
)

// HSecure is the NIST-approved, security-critical hash (spec.md §4.1): used
// for entropy seeds, signed payloads, state roots, and anywhere collision
// resistance under adversarial pressure matters more than raw throughput.
func HSecure(data ...[]byte) [32]byte {
	h := sha3.New256()
	for _, d := range data {
		h.Write(d) //nolint:errcheck // hash.Hash.Write never errors
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// HFast is the high-throughput hash (spec.md §4.1): ping hashing, Merkle
// building, proof-of-history slots, and commit/reveal hiding commitments,
// where speed dominates and the data is not adversarially chosen before the
// fact (the commit/reveal scheme's binding property comes from the 32-byte
// nonce, not from HFast's collision resistance alone).
func HFast(data ...[]byte) [32]byte {
	h := blake3.New()
	for _, d := range data {
		h.Write(d) //nolint:errcheck // hash.Hash.Write never errors
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
