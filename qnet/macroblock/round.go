// Package macroblock implements the Byzantine commit/reveal macroblock round
// (C7): a fixed committer set commits hidden entropy contributions, reveals
// them, and the round finalizes once reveals reach Byzantine quorum,
// producing the Macroblock that seeds the next producer rotation (spec.md
// §4.7).
package macroblock

import (
	"errors"
	"time"

	"github.com/qnet-network/qnet-core/ids"
	"github.com/qnet-network/qnet-core/qnet/config"
	"github.com/qnet-network/qnet-core/qnet/crypto"
	"github.com/qnet-network/qnet-core/qnet/types"
)

// Phase identifies where a Round sits in its commit/reveal lifecycle.
type Phase int

const (
	PhaseCommit Phase = iota
	PhaseReveal
	PhaseFinalized
	PhaseFailed
)

var (
	// ErrWrongPhase means a message arrived for a phase the round has
	// already left or not yet entered.
	ErrWrongPhase = errors.New("macroblock: message does not belong to the round's current phase")
	// ErrCommitDeadlinePassed means now is past the round's commit deadline
	// (spec.md §4.7 "Phase 1 — Commit (<= 60s)").
	ErrCommitDeadlinePassed = errors.New("macroblock: commit phase deadline has passed")
	// ErrRevealDeadlinePassed means now is past the round's reveal deadline
	// (spec.md §4.7 "Phase 2 — Reveal (<= 30s)").
	ErrRevealDeadlinePassed = errors.New("macroblock: reveal phase deadline has passed")
	// ErrNotCommitter means nodeID was not in the committer set frozen at
	// round start (spec.md §4.7 "Peers accept commits from nodes with score
	// >= 70; commits from unqualified nodes are dropped").
	ErrNotCommitter = errors.New("macroblock: node is not an eligible committer for this round")
	// ErrUnknownCommitter means a reveal arrived from a node that never
	// committed in this round.
	ErrUnknownCommitter = errors.New("macroblock: reveal from a node that did not commit")
	// ErrRevealMismatch means h_fast(value||nonce) did not reproduce the
	// node's stored commit (spec.md §4.7 "Peers verify h_fast(value||nonce)
	// = stored_commit").
	ErrRevealMismatch = errors.New("macroblock: revealed value/nonce does not match stored commit")
	// ErrDuplicateCommit means nodeID already committed this round.
	ErrDuplicateCommit = errors.New("macroblock: node already committed this round")
	// ErrDuplicateReveal means nodeID already revealed this round.
	ErrDuplicateReveal = errors.New("macroblock: node already revealed this round")
	// ErrQuorumNotMet means Finalize was called without enough valid reveals
	// (spec.md §4.7 "Failure modes").
	ErrQuorumNotMet = errors.New("macroblock: insufficient reveals for Byzantine quorum")
)

// Round runs one macroblock commit/reveal round over a committer set frozen
// at round start (spec.md §4.7 "Round structure").
type Round struct {
	Number     uint64
	MicroRange types.MicroRange

	committersList []ids.NodeID
	committers     map[ids.NodeID]struct{}
	commits        map[ids.NodeID][32]byte
	reveals        map[ids.NodeID]types.RevealEntry

	phase          Phase
	commitDeadline time.Time
	revealDeadline time.Time

	params config.Parameters
}

// NewRound opens a round for committers (the canonical eligible set at
// score >= REPUTATION_THRESHOLD, or the survival set after repeated
// failures), starting the commit-phase clock at now. committers must already
// be in canonical (NodeId-sorted) order so every honest node derives the
// same round leader from it.
func NewRound(number uint64, microRange types.MicroRange, committers []ids.NodeID, now time.Time, params config.Parameters) *Round {
	set := make(map[ids.NodeID]struct{}, len(committers))
	for _, n := range committers {
		set[n] = struct{}{}
	}
	list := make([]ids.NodeID, len(committers))
	copy(list, committers)
	return &Round{
		Number:         number,
		MicroRange:     microRange,
		committersList: list,
		committers:     set,
		commits:        make(map[ids.NodeID][32]byte),
		reveals:        make(map[ids.NodeID]types.RevealEntry),
		phase:          PhaseCommit,
		commitDeadline: now.Add(params.MaxCommitPhase),
		params:         params,
	}
}

// Committers returns the round's canonical committer set.
func (r *Round) Committers() []ids.NodeID {
	out := make([]ids.NodeID, len(r.committersList))
	copy(out, r.committersList)
	return out
}

// Phase returns the round's current lifecycle phase.
func (r *Round) Phase() Phase { return r.phase }

// CommitterCount returns the frozen committer-set size, the quorum
// denominator (spec.md §4.7 Phase 3).
func (r *Round) CommitterCount() int { return len(r.committers) }

// IsCommitter reports whether nodeID is a member of this round's frozen
// committer set.
func (r *Round) IsCommitter(nodeID ids.NodeID) bool {
	_, ok := r.committers[nodeID]
	return ok
}

// SubmitCommit records a Phase 1 commit broadcast.
func (r *Round) SubmitCommit(nodeID ids.NodeID, commit [32]byte, now time.Time) error {
	if r.phase != PhaseCommit {
		return ErrWrongPhase
	}
	if now.After(r.commitDeadline) {
		return ErrCommitDeadlinePassed
	}
	if _, ok := r.committers[nodeID]; !ok {
		return ErrNotCommitter
	}
	if _, ok := r.commits[nodeID]; ok {
		return ErrDuplicateCommit
	}
	r.commits[nodeID] = commit
	return nil
}

// AdvanceToReveal closes the commit phase and opens the reveal phase
// (spec.md §4.7 Phase 2). Committers who never submitted a commit simply
// have nothing to reveal.
func (r *Round) AdvanceToReveal(now time.Time) {
	r.phase = PhaseReveal
	r.revealDeadline = now.Add(r.params.MaxRevealPhase)
}

// SubmitReveal records a Phase 2 reveal once its value/nonce reproduce the
// node's stored commit.
func (r *Round) SubmitReveal(nodeID ids.NodeID, value, nonce [32]byte, now time.Time) error {
	if r.phase != PhaseReveal {
		return ErrWrongPhase
	}
	if now.After(r.revealDeadline) {
		return ErrRevealDeadlinePassed
	}
	stored, ok := r.commits[nodeID]
	if !ok {
		return ErrUnknownCommitter
	}
	if _, ok := r.reveals[nodeID]; ok {
		return ErrDuplicateReveal
	}
	if crypto.HFast(value[:], nonce[:]) != stored {
		return ErrRevealMismatch
	}
	r.reveals[nodeID] = types.RevealEntry{NodeID: nodeID, Value: value, Nonce: nonce}
	return nil
}

// QuorumMet reports whether the reveal set has reached Byzantine quorum of
// the committer set (spec.md §3 Macroblock invariant, §4.7 Phase 3).
func (r *Round) QuorumMet() bool {
	return len(r.reveals) >= config.QuorumSize(len(r.committers))
}

// MissingReveals returns every committer that never produced a valid
// reveal: the set penalized on round failure (spec.md §4.7 "Failure modes").
func (r *Round) MissingReveals() []ids.NodeID {
	var out []ids.NodeID
	for n := range r.committers {
		if _, ok := r.reveals[n]; !ok {
			out = append(out, n)
		}
	}
	return out
}

// ValidReveals returns every committer that produced a valid reveal, the set
// credited +5 whether or not the round ultimately reaches quorum (spec.md
// §4.7 "Failure modes ... +5 for those who did").
func (r *Round) ValidReveals() []ids.NodeID {
	out := make([]ids.NodeID, 0, len(r.reveals))
	for n := range r.reveals {
		out = append(out, n)
	}
	return out
}

// Finalize builds the sorted ConsensusProof from the accumulated reveals,
// failing with ErrQuorumNotMet if quorum was not reached (spec.md §4.7
// Phase 3).
func (r *Round) Finalize() (types.ConsensusProof, error) {
	if !r.QuorumMet() {
		r.phase = PhaseFailed
		return types.ConsensusProof{}, ErrQuorumNotMet
	}
	proof := types.ConsensusProof{Reveals: make([]types.RevealEntry, 0, len(r.reveals))}
	for _, entry := range r.reveals {
		proof.Reveals = append(proof.Reveals, entry)
	}
	proof.SortReveals()
	r.phase = PhaseFinalized
	return proof, nil
}
