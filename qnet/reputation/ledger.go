// Package reputation implements the reputation ledger (C4): per-NodeId
// scores in [0,100] driven by signed production/consensus/ping events, the
// exclusive source of producer and validator eligibility (spec.md §4.4).
//
// Grounded on validators/validators.go's Manager/Set shape and
// uptime/manager.go's per-node tracked-state Manager pattern from the
// teacher, generalized from validator weight/uptime tracking to a bounded,
// event-driven score.
package reputation

import (
	"sync"
	"time"

	"github.com/luxfi/log"

	"github.com/qnet-network/qnet-core/ids"
	"github.com/qnet-network/qnet-core/qnet/config"
)

// NodeType classifies a node's registration tier. Only Full and Super nodes
// may become consensus-eligible (spec.md §4.4, §3 "ProducerRound").
type NodeType int

const (
	Light NodeType = iota
	Full
	Super
)

// Event names the reputation-affecting occurrences of spec.md §4.4's table.
type Event int

const (
	EventMicroblockProduced Event = iota
	EventMacroblockLeaderSuccess
	EventMacroblockParticipant
	EventEmergencyProducerSuccess
	EventMicroblockFailed
	EventMacroblockRoundFailed
	EventPingSuccess
	EventPingMissed
	EventInvalidCertFromPeer
)

// deltas is the normative event → score delta table (spec.md §4.4).
var deltas = map[Event]float64{
	EventMicroblockProduced:       1,
	EventMacroblockLeaderSuccess:  10,
	EventMacroblockParticipant:    5,
	EventEmergencyProducerSuccess: 5,
	EventMicroblockFailed:         -20,
	EventMacroblockRoundFailed:    -30,
	EventPingSuccess:              1,
	EventPingMissed:               -1,
	EventInvalidCertFromPeer:      -20,
}

// HistoryEntry records one applied event for audit/flap-rate-limiting
// purposes (spec.md §4.4 "bounded per-node history ring").
type HistoryEntry struct {
	Event Event
	Delta float64
	At    time.Time
	Score float64 // score after applying this event
}

// entry is the ledger's internal per-node record. Every mutation happens
// with entry.mu held, giving per-NodeId single-writer serialization
// (spec.md §5 "Ordering guarantees": reputation updates are strictly
// serialized per NodeId).
type entry struct {
	mu         sync.Mutex
	score      float64
	nodeType   NodeType
	history    []HistoryEntry
	historyPos int
	lastUpdate time.Time
}

// Ledger is the process's single reputation ledger, exclusively owning
// scores (spec.md §3 "Ownership").
type Ledger struct {
	mu      sync.RWMutex // guards the entries map itself, not individual scores
	entries map[ids.NodeID]*entry

	historySize int
	params      config.Parameters
	log         log.Logger
}

// New builds an empty ledger.
func New(params config.Parameters, logger log.Logger) *Ledger {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &Ledger{
		entries:     make(map[ids.NodeID]*entry),
		historySize: params.ReputationHistorySize,
		params:      params,
		log:         logger,
	}
}

// Register adds a node at the starting score of 70.0 (spec.md §3
// "ReputationEntry ... Starts at 70.0") if it is not already present.
func (l *Ledger) Register(nodeID ids.NodeID, nodeType NodeType, at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[nodeID]; ok {
		return
	}
	l.entries[nodeID] = &entry{
		score:      l.params.ReputationStart,
		nodeType:   nodeType,
		history:    make([]HistoryEntry, 0, l.historySize),
		lastUpdate: at,
	}
}

func (l *Ledger) getOrRegister(nodeID ids.NodeID, at time.Time) *entry {
	l.mu.RLock()
	e, ok := l.entries[nodeID]
	l.mu.RUnlock()
	if ok {
		return e
	}
	l.Register(nodeID, Full, at)
	l.mu.RLock()
	e = l.entries[nodeID]
	l.mu.RUnlock()
	return e
}

// Apply applies event's delta to nodeID's score, clamping to [0,100]
// (spec.md §4.4, testable property §8.10).
func (l *Ledger) Apply(nodeID ids.NodeID, event Event, at time.Time) float64 {
	return l.applyDelta(nodeID, deltas[event], event, at)
}

// ApplyDelta applies an arbitrary delta outside the event table (e.g. a -20
// invalid-certificate penalty, the same amount as EventInvalidCertFromPeer),
// clamped like Apply; its history entries carry Event -1.
func (l *Ledger) ApplyDelta(nodeID ids.NodeID, delta float64, at time.Time) float64 {
	return l.applyDelta(nodeID, delta, -1, at)
}

func (l *Ledger) applyDelta(nodeID ids.NodeID, delta float64, event Event, at time.Time) float64 {
	e := l.getOrRegister(nodeID, at)
	e.mu.Lock()
	defer e.mu.Unlock()

	newScore := e.score + delta
	if newScore > l.params.ReputationMax {
		newScore = l.params.ReputationMax
	}
	if newScore < l.params.ReputationMin {
		newScore = l.params.ReputationMin
	}
	e.score = newScore
	e.lastUpdate = at

	record := HistoryEntry{Event: event, Delta: delta, At: at, Score: newScore}
	if l.historySize > 0 {
		if len(e.history) < l.historySize {
			e.history = append(e.history, record)
		} else {
			e.history[e.historyPos] = record
			e.historyPos = (e.historyPos + 1) % l.historySize
		}
	}

	l.log.Debug("reputation updated", "node_id", nodeID.String(), "delta", delta, "score", newScore)
	return newScore
}

// Ban sets a node's reputation to zero, as required for a detected
// double-sign (spec.md §4.4 "instant ban via peer layer" / §7 "mark
// reputation = 0").
func (l *Ledger) Ban(nodeID ids.NodeID, at time.Time) {
	e := l.getOrRegister(nodeID, at)
	e.mu.Lock()
	defer e.mu.Unlock()
	delta := -e.score
	e.score = 0
	e.lastUpdate = at
	record := HistoryEntry{Event: -1, Delta: delta, At: at, Score: 0}
	if l.historySize > 0 {
		if len(e.history) < l.historySize {
			e.history = append(e.history, record)
		} else {
			e.history[e.historyPos] = record
			e.historyPos = (e.historyPos + 1) % l.historySize
		}
	}
	l.log.Warn("node reputation zeroed (ban)", "node_id", nodeID.String())
}

// Score returns a node's current score and whether it is known.
func (l *Ledger) Score(nodeID ids.NodeID) (float64, bool) {
	l.mu.RLock()
	e, ok := l.entries[nodeID]
	l.mu.RUnlock()
	if !ok {
		return 0, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.score, true
}

// NodeType returns a node's registered type.
func (l *Ledger) NodeType(nodeID ids.NodeID) (NodeType, bool) {
	l.mu.RLock()
	e, ok := l.entries[nodeID]
	l.mu.RUnlock()
	if !ok {
		return 0, false
	}
	return e.nodeType, true
}

// History returns a consistent snapshot of a node's bounded update history,
// oldest first.
func (l *Ledger) History(nodeID ids.NodeID) []HistoryEntry {
	l.mu.RLock()
	e, ok := l.entries[nodeID]
	l.mu.RUnlock()
	if !ok {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.history) < l.historySize || l.historySize == 0 {
		out := make([]HistoryEntry, len(e.history))
		copy(out, e.history)
		return out
	}
	out := make([]HistoryEntry, 0, len(e.history))
	out = append(out, e.history[e.historyPos:]...)
	out = append(out, e.history[:e.historyPos]...)
	return out
}

// ConsensusEligible reports whether a node is consensus-eligible at the
// given threshold: score >= REPUTATION_THRESHOLD and node_type in
// {Full, Super} (spec.md §4.4, §4.5).
func (l *Ledger) ConsensusEligible(nodeID ids.NodeID, threshold float64) bool {
	l.mu.RLock()
	e, ok := l.entries[nodeID]
	l.mu.RUnlock()
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.nodeType != Full && e.nodeType != Super {
		return false
	}
	return e.score >= threshold
}

// EligibleSet returns every registered node meeting the given score
// threshold and Full/Super node type, used by the producer selector
// (spec.md §4.5 step 2) and macroblock survival fallback (spec.md §4.7).
func (l *Ledger) EligibleSet(threshold float64) []ids.NodeID {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []ids.NodeID
	for nodeID, e := range l.entries {
		e.mu.Lock()
		ok := (e.nodeType == Full || e.nodeType == Super) && e.score >= threshold
		e.mu.Unlock()
		if ok {
			out = append(out, nodeID)
		}
	}
	return out
}

// Snapshot captures every node's current score, for the macroblock's
// canonical reputation snapshot (spec.md §4.7 Phase 3).
func (l *Ledger) Snapshot() map[ids.NodeID]float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[ids.NodeID]float64, len(l.entries))
	for nodeID, e := range l.entries {
		e.mu.Lock()
		out[nodeID] = e.score
		e.mu.Unlock()
	}
	return out
}
