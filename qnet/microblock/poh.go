package microblock

import (
	"encoding/binary"

	"github.com/qnet-network/qnet-core/qnet/crypto"
)

// PohState is the proof-of-history sequential hash chain carried forward on
// every microblock (spec.md §3 "poh_hash (64 bytes), poh_count (64-bit)").
// It runs two interleaved chains, a secure one and a fast one, whose
// concatenation is exactly the 64-byte poh_hash field: advancing mixes
// roughly 25% h_secure steps with 75% h_fast steps into the combined state
// (spec.md §4.6 step 5).
type PohState struct {
	Secure [32]byte
	Fast   [32]byte
	Count  uint64
}

// Advance runs `slots` further hash-chain steps, mutating Secure/Fast/Count
// in place. Every 4th step chains through h_secure (~25%); the rest chain
// through h_fast (~75%).
func (p *PohState) Advance(slots uint64) {
	for i := uint64(0); i < slots; i++ {
		var ctr [8]byte
		binary.LittleEndian.PutUint64(ctr[:], p.Count)
		if i%4 == 0 {
			p.Secure = crypto.HSecure(p.Secure[:], ctr[:])
		} else {
			p.Fast = crypto.HFast(p.Fast[:], ctr[:])
		}
		p.Count++
	}
}

// Hash returns the 64-byte poh_hash: Secure concatenated with Fast.
func (p *PohState) Hash() [64]byte {
	var out [64]byte
	copy(out[:32], p.Secure[:])
	copy(out[32:], p.Fast[:])
	return out
}
