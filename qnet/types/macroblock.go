package types

import (
	"bytes"
	"sort"
	"time"

	"github.com/qnet-network/qnet-core/ids"
	"github.com/qnet-network/qnet-core/qnet/cert"
	"github.com/qnet-network/qnet-core/qnet/crypto"
)

// MicroRange is the inclusive [lo, hi] range of microblock heights a
// Macroblock finalizes (spec.md §3 "micro_range").
type MicroRange struct {
	Lo uint64
	Hi uint64
}

// RevealEntry is one validator's committed-then-revealed entropy
// contribution to a macroblock round (spec.md §4.7 Phase 3: "consensus_proof
// = sorted list of reveal entries").
type RevealEntry struct {
	NodeID ids.NodeID
	Value  [32]byte
	Nonce  [32]byte
}

// ConsensusProof is the set of validator reveals backing a Macroblock,
// canonically sorted by NodeId (spec.md §3 "consensus_proof (set of
// validator participation entries, each signed)").
type ConsensusProof struct {
	Reveals []RevealEntry
}

// SortReveals orders Reveals by NodeId so every node builds an identical
// consensus_proof for the same round (spec.md §4.7 Phase 3 "sorted list").
func (p *ConsensusProof) SortReveals() {
	sort.Slice(p.Reveals, func(i, j int) bool {
		return p.Reveals[i].NodeID.Compare(p.Reveals[j].NodeID) < 0
	})
}

// EntropySeed computes entropy_seed = h_secure(concat(sorted(value_i)))
// (spec.md §4.7 Phase 3). Callers must call SortReveals first.
func (p *ConsensusProof) EntropySeed() [32]byte {
	var concat []byte
	for _, r := range p.Reveals {
		concat = append(concat, r.Value[:]...)
	}
	return crypto.HSecure(concat)
}

// Macroblock finalizes a window of FINALITY_WINDOW microblocks and seeds the
// entropy for the next producer rotation (spec.md §3 "Macroblock").
type Macroblock struct {
	Height            uint64
	Timestamp         time.Time
	PreviousMacroHash ids.ID
	MicroRange        MicroRange
	StateRoot         ids.ID
	EntropySeed       [32]byte
	ConsensusProof    ConsensusProof
	Signature         cert.FullSignature
}

// CanonicalBytes serializes every field except Signature, in spec.md §3
// order (spec.md §6).
func (m *Macroblock) CanonicalBytes() []byte {
	var buf bytes.Buffer
	writeUint64(&buf, m.Height)
	writeInt64(&buf, m.Timestamp.Unix())
	writeFixed(&buf, m.PreviousMacroHash.Bytes())
	writeUint64(&buf, m.MicroRange.Lo)
	writeUint64(&buf, m.MicroRange.Hi)
	writeFixed(&buf, m.StateRoot.Bytes())
	writeFixed(&buf, m.EntropySeed[:])

	writeUint32(&buf, uint32(len(m.ConsensusProof.Reveals)))
	for _, r := range m.ConsensusProof.Reveals {
		writeLP(&buf, []byte(r.NodeID))
		writeFixed(&buf, r.Value[:])
		writeFixed(&buf, r.Nonce[:])
	}
	return buf.Bytes()
}

// Hash computes the canonical macroblock hash (spec.md §6). This is the
// previous_macro_hash seen by the next Macroblock and the
// previous_finalized_macroblock_hash entropy source for producer selection
// (spec.md §4.5).
func (m *Macroblock) Hash() ids.ID {
	return ids.ID(crypto.HSecure(m.CanonicalBytes()))
}

// WindowSize returns hi - lo + 1, which must equal FINALITY_WINDOW (spec.md
// §3 invariant).
func (r MicroRange) WindowSize() uint64 {
	return r.Hi - r.Lo + 1
}
