// Package selector implements the producer selector (C5): deterministic,
// entropy-mixed selection of the current microblock producer and validator
// set from the reputation-qualified node set (spec.md §4.5).
//
// Grounded on utils/sampler/uniform.go's NewDeterministicUniform pattern
// from the teacher, generalized from a seeded math/rand source to a
// hash-derived index so selection is reproducible across independent nodes
// without sharing RNG state (spec.md §8.4 "Deterministic producer
// agreement").
package selector

import (
	"encoding/binary"
	"errors"
	"sort"

	"github.com/qnet-network/qnet-core/ids"
	"github.com/qnet-network/qnet-core/qnet/config"
	"github.com/qnet-network/qnet-core/qnet/crypto"
)

// ErrNoEligibleNodes is returned when the eligible set is empty: selection
// is impossible and callers must halt production (spec.md §9 Open Question
// handles the adjacent "no quorum" case the same way: no invented fallback).
var ErrNoEligibleNodes = errors.New("selector: eligible set is empty")

const seedDomain = "QNet_Producer_v1"

// Round computes the producer round number for height h (spec.md §4.5 step
// 1: round = h / ROTATION_INTERVAL).
func Round(height, rotationInterval uint64) uint64 {
	return height / rotationInterval
}

// CanonicalizeEligible sorts the eligible set by NodeId so every honest node
// computes an identical input ordering (spec.md §4.5 step 2, §9 "Producer
// selection input canonicalization"). The sort uses NodeID's byte-wise
// Compare, so it is stable across nodes and languages.
func CanonicalizeEligible(eligible []ids.NodeID) []ids.NodeID {
	out := make([]ids.NodeID, len(eligible))
	copy(out, eligible)
	sort.Slice(out, func(i, j int) bool { return out[i].Compare(out[j]) < 0 })
	return out
}

// seed computes the entropy-mixed selection seed: H_secure("QNet_Producer_v1"
// ∥ round ∥ previous_finalized_macroblock_hash ∥ eligible_concat ∥
// missed_count) (spec.md §4.5 step 3), with round and missed_count as
// little-endian uint64 and each eligible NodeId followed by a zero byte.
func seed(round uint64, prevMacroHash ids.ID, eligible []ids.NodeID, missedCount uint64) [32]byte {
	var roundBuf [8]byte
	binary.LittleEndian.PutUint64(roundBuf[:], round)

	var missedBuf [8]byte
	binary.LittleEndian.PutUint64(missedBuf[:], missedCount)

	var concat []byte
	for _, n := range eligible {
		concat = append(concat, []byte(n)...)
		concat = append(concat, 0) // separator, avoids ambiguous concatenation
	}

	return crypto.HSecure([]byte(seedDomain), roundBuf[:], prevMacroHash.Bytes(), concat, missedBuf[:])
}

// SelectProducer deterministically selects the producer for round `round`
// given the canonical eligible set and the entropy source
// previous_finalized_macroblock_hash (spec.md §4.5 steps 3-5).
//
// missedCount is 0 for ordinary selection and missed_count+1 for emergency
// failover rounds (spec.md §4.6 "Emergency producer" — round argument
// (round, missed_count+1)); passing it through the same seed keeps §8.9
// "Emergency idempotence" trivially true: the same (round, missed_count)
// always hashes to the same seed.
func SelectProducer(round uint64, prevMacroHash ids.ID, canonicalEligible []ids.NodeID, missedCount uint64) (ids.NodeID, error) {
	if len(canonicalEligible) == 0 {
		return "", ErrNoEligibleNodes
	}
	s := seed(round, prevMacroHash, canonicalEligible, missedCount)
	idx := binary.BigEndian.Uint64(s[0:8]) % uint64(len(canonicalEligible))
	return canonicalEligible[idx], nil
}

// SelectValidatorSet returns the validator set for the macroblock round
// covering this producer round: the whole canonical eligible set capped at
// MAX_VALIDATORS_PER_ROUND, deterministically sampled down using the same
// seed when the eligible set exceeds the cap (spec.md §4.5 step 5).
func SelectValidatorSet(round uint64, prevMacroHash ids.ID, canonicalEligible []ids.NodeID, params config.Parameters) []ids.NodeID {
	if len(canonicalEligible) <= params.MaxValidatorsPerRound {
		out := make([]ids.NodeID, len(canonicalEligible))
		copy(out, canonicalEligible)
		return out
	}
	return deterministicSample(round, prevMacroHash, canonicalEligible, params.MaxValidatorsPerRound)
}

// deterministicSample draws `want` distinct members from canonicalEligible
// using a Fisher-Yates shuffle keyed by successive hashes of the selection
// seed, so every node performing the same sample on the same canonical
// input reaches the same subset (spec.md §4.5 step 5 "the same seed is used
// to deterministically sample 1000 members").
func deterministicSample(round uint64, prevMacroHash ids.ID, eligible []ids.NodeID, want int) []ids.NodeID {
	pool := make([]ids.NodeID, len(eligible))
	copy(pool, eligible)

	for i := 0; i < want && i < len(pool)-1; i++ {
		s := seed(round, prevMacroHash, pool[i:], uint64(i))
		remaining := len(pool) - i
		j := i + int(binary.BigEndian.Uint64(s[0:8])%uint64(remaining))
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:want]
}
