package macroblock

import (
	"errors"
	"time"

	"github.com/luxfi/log"

	"github.com/qnet-network/qnet-core/ids"
	"github.com/qnet-network/qnet-core/qnet/cert"
	"github.com/qnet-network/qnet-core/qnet/chain"
	"github.com/qnet-network/qnet-core/qnet/clock"
	"github.com/qnet-network/qnet-core/qnet/config"
	"github.com/qnet-network/qnet-core/qnet/metrics"
	"github.com/qnet-network/qnet-core/qnet/reputation"
	"github.com/qnet-network/qnet-core/qnet/selector"
	"github.com/qnet-network/qnet-core/qnet/types"
)

// consecutiveFailureFallback is the number of consecutive round failures
// after which producer/committer selection falls back to the survival set
// (spec.md §4.7 "After 3 consecutive failures, producer selection falls back
// to a 'survival set' of nodes with score >= 40 until a round succeeds").
const consecutiveFailureFallback = 3

// ErrNoCommitters means no node met the round's eligibility threshold, so no
// round can open.
var ErrNoCommitters = errors.New("macroblock: no eligible committers for this round")

// Manager drives the macroblock round lifecycle: opening rounds over the
// reputation-qualified committer set, picking the deterministic round
// leader, finalizing successful rounds into the chain, and applying the
// win/loss reputation deltas of spec.md §4.7.
type Manager struct {
	params  config.Parameters
	chain   *chain.Chain
	ledger  *reputation.Ledger
	certMgr *cert.Manager
	clk     clock.Clock
	log     log.Logger
	metrics *metrics.Metrics

	consecutiveFailures int
}

// SetMetrics attaches a collector bundle so round outcomes are observed.
// Optional: a nil bundle (the default) disables recording.
func (m *Manager) SetMetrics(collectors *metrics.Metrics) {
	m.metrics = collectors
}

// NewManager builds a Manager.
func NewManager(params config.Parameters, ch *chain.Chain, ledger *reputation.Ledger, certMgr *cert.Manager, clk clock.Clock, logger log.Logger) *Manager {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Manager{params: params, chain: ch, ledger: ledger, certMgr: certMgr, clk: clk, log: logger}
}

// ConsecutiveFailures reports how many rounds have failed in a row.
func (m *Manager) ConsecutiveFailures() int { return m.consecutiveFailures }

// EligibilityThreshold returns the score threshold committers must meet to
// open the next round: REPUTATION_THRESHOLD ordinarily, or
// SURVIVAL_THRESHOLD once 3 rounds have failed consecutively (spec.md §4.7
// "Failure modes").
func (m *Manager) EligibilityThreshold() float64 {
	if m.consecutiveFailures >= consecutiveFailureFallback {
		return m.params.SurvivalThreshold
	}
	return m.params.ReputationThreshold
}

func (m *Manager) prevMacroHash() ids.ID {
	if tip := m.chain.MacroTip(); tip != nil {
		return tip.Hash()
	}
	return ids.Empty
}

// OpenRound builds a Round over the current committer set (spec.md §4.7
// "Round structure"), covering microblocks [microLo, microHi].
func (m *Manager) OpenRound(microLo, microHi uint64, now time.Time) (*Round, error) {
	committers := selector.CanonicalizeEligible(m.ledger.EligibleSet(m.EligibilityThreshold()))
	if len(committers) == 0 {
		return nil, ErrNoCommitters
	}
	height := uint64(0)
	if tip := m.chain.MacroTip(); tip != nil {
		height = tip.Height + 1
	}
	return NewRound(height, types.MicroRange{Lo: microLo, Hi: microHi}, committers, now, m.params), nil
}

// Leader returns the round's deterministic leader: the node that assembles,
// signs, and broadcasts the finalized Macroblock (spec.md §4.4 lists a
// "Macroblock leader, round succeeds: +10" credit without naming a selection
// rule, so the leader is derived with the same deterministic selector used
// for microblock producers, over the round's committer set and its
// previous_finalized_macroblock_hash — every honest node computes the same
// answer without any extra round-trip).
func (m *Manager) Leader(r *Round) (ids.NodeID, error) {
	prev := m.prevMacroHash()
	// Once r has finalized, the macro tip is r's own macroblock; the hash the
	// round was opened against is that block's PreviousMacroHash.
	if tip := m.chain.MacroTip(); tip != nil && tip.Height == r.Number {
		prev = tip.PreviousMacroHash
	}
	return selector.SelectProducer(r.Number, prev, r.Committers(), 0)
}

// Finalize closes a round that has reached quorum, builds and signs the
// Macroblock, appends it to the chain, and applies reputation credits
// (spec.md §4.7 Phase 3). On ErrQuorumNotMet it instead runs the failure
// path: -30 for committers who never revealed, +5 for those who did, and
// increments the consecutive-failure counter (spec.md §4.7 "Failure modes").
func (m *Manager) Finalize(r *Round, selfID ids.NodeID, stateRoot ids.ID, now time.Time) (*types.Macroblock, error) {
	proof, err := r.Finalize()
	if err != nil {
		m.applyFailure(r, now)
		if m.metrics != nil {
			m.metrics.ObserveRound(metrics.OutcomeFailed)
		}
		return nil, err
	}

	prevHash := m.prevMacroHash()
	height := uint64(0)
	if tip := m.chain.MacroTip(); tip != nil {
		height = tip.Height + 1
	}

	macro := &types.Macroblock{
		Height:            height,
		Timestamp:         now,
		PreviousMacroHash: prevHash,
		MicroRange:        r.MicroRange,
		StateRoot:         stateRoot,
		EntropySeed:       proof.EntropySeed(),
		ConsensusProof:    proof,
	}

	curCert, edPriv := m.certMgr.Current()
	canonicalHash := macro.Hash()
	sig, err := cert.SignFull(selfID, curCert, edPriv, m.certMgr.PQPrivate(), canonicalHash[:], now)
	if err != nil {
		return nil, err
	}
	macro.Signature = sig

	if err := m.chain.AppendMacro(macro); err != nil {
		return nil, err
	}

	m.applySuccess(r, now)
	if m.metrics != nil {
		m.metrics.ObserveRound(metrics.OutcomeFinalized)
	}
	m.log.Info("macroblock round finalized", "height", height, "committers", r.CommitterCount(), "reveals", len(proof.Reveals))
	return macro, nil
}

func (m *Manager) applySuccess(r *Round, now time.Time) {
	m.consecutiveFailures = 0
	leader, err := m.Leader(r)
	for _, n := range r.ValidReveals() {
		if err == nil && n == leader {
			m.ledger.Apply(n, reputation.EventMacroblockLeaderSuccess, now)
			continue
		}
		m.ledger.Apply(n, reputation.EventMacroblockParticipant, now)
	}
	// A committer who never revealed is penalized even on a round that
	// still reaches quorum and finalizes (spec.md §4.4 silent-committer
	// case: the round succeeds but the silent node still loses 30).
	for _, n := range r.MissingReveals() {
		m.ledger.Apply(n, reputation.EventMacroblockRoundFailed, now)
	}
}

func (m *Manager) applyFailure(r *Round, now time.Time) {
	m.consecutiveFailures++
	for _, n := range r.ValidReveals() {
		m.ledger.Apply(n, reputation.EventMacroblockParticipant, now)
	}
	for _, n := range r.MissingReveals() {
		m.ledger.Apply(n, reputation.EventMacroblockRoundFailed, now)
	}
	m.log.Warn("macroblock round failed", "height", r.Number, "reveals", len(r.ValidReveals()), "committers", r.CommitterCount(), "consecutive_failures", m.consecutiveFailures)
}
