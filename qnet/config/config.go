// Package config holds the normative constants of the QNet consensus core
// (spec.md §6) and environment presets, modeled on the teacher's
// config.Parameters / DefaultParams / MainnetParams / TestnetParams shape.
package config

import (
	"errors"
	"time"
)

// Validation errors.
var (
	ErrRotationIntervalInvalid = errors.New("config: rotation interval must be > 0")
	ErrFinalityWindowInvalid   = errors.New("config: finality window must be > 0")
	ErrThresholdInvalid        = errors.New("config: reputation threshold must be in [0,100]")
	ErrMaxTxInvalid            = errors.New("config: max tx per microblock must be > 0")
)

// Parameters holds every normative constant from spec.md §6, tunable per
// environment (mainnet/testnet/local) the way the teacher's consensus
// Parameters are tunable per network.
type Parameters struct {
	// Cadence.
	MicroblockInterval time.Duration
	FinalityWindow     uint64 // microblocks per macroblock round
	RotationInterval   uint64 // microblocks per producer round

	// Eligibility.
	MaxValidatorsPerRound int
	ReputationThreshold   float64
	SurvivalThreshold     float64

	// Pipeline.
	MaxTxPerMicroblock  int
	MissedBlockTimeout  time.Duration
	EmergencyChainLimit int
	PohHashesPerSlot    uint64

	// Macroblock consensus.
	MaxCommitPhase time.Duration
	MaxRevealPhase time.Duration

	// Certificates.
	CertLifetime    time.Duration
	CertRotation    time.Duration // 0.80 * CertLifetime
	CertGrace       time.Duration // CertLifetime - CertRotation
	ClockSkewBound  time.Duration
	CertAgeBound    time.Duration

	// Sync.
	FastSyncTrigger      uint64
	SnapshotIntervalFull uint64
	SnapshotIntervalIncr uint64
	SnapshotsRetained    int
	NormalSyncTimeout    time.Duration
	FastSyncTimeout      time.Duration
	BlockRangeChunkSize  uint64

	// Certificate cache.
	CertCacheCapacityFullSuper int
	CertCacheCapacityLight     int
	CertCachePersistLimit      int

	// Reputation.
	ReputationHistorySize int
	ReputationStart       float64
	ReputationMax         float64
	ReputationMin         float64
}

// DefaultParams returns spec.md's normative mainnet values (§6 "Flags and
// constants (normative)").
func DefaultParams() Parameters {
	return Parameters{
		MicroblockInterval: 1 * time.Second,
		FinalityWindow:     90,
		RotationInterval:   30,

		MaxValidatorsPerRound: 1000,
		ReputationThreshold:   70,
		SurvivalThreshold:     40,

		MaxTxPerMicroblock:  50_000,
		MissedBlockTimeout:  2 * time.Second,
		EmergencyChainLimit: 5,
		PohHashesPerSlot:    100,

		MaxCommitPhase: 60 * time.Second,
		MaxRevealPhase: 30 * time.Second,

		CertLifetime:   270 * time.Second,
		CertRotation:   216 * time.Second,
		CertGrace:      54 * time.Second,
		ClockSkewBound: 60 * time.Second,
		CertAgeBound:   7200 * time.Second,

		FastSyncTrigger:      50,
		SnapshotIntervalFull: 10_000,
		SnapshotIntervalIncr: 1_000,
		SnapshotsRetained:    5,
		NormalSyncTimeout:    30 * time.Second,
		FastSyncTimeout:      60 * time.Second,
		BlockRangeChunkSize:  100,

		CertCacheCapacityFullSuper: 5000,
		CertCacheCapacityLight:     0,
		CertCachePersistLimit:      2000,

		ReputationHistorySize: 100,
		ReputationStart:       70.0,
		ReputationMax:         100.0,
		ReputationMin:         0.0,
	}
}

// MainnetParams is an alias of DefaultParams: spec.md's constants are
// normative for mainnet.
func MainnetParams() Parameters {
	return DefaultParams()
}

// TestnetParams shortens cadences for faster iteration, mirroring the
// teacher's TestnetParams shrinking K/Beta/BlockTime relative to mainnet.
func TestnetParams() Parameters {
	p := DefaultParams()
	p.FinalityWindow = 20
	p.RotationInterval = 10
	p.MaxValidatorsPerRound = 100
	p.CertLifetime = 60 * time.Second
	p.CertRotation = 48 * time.Second
	p.CertGrace = 12 * time.Second
	return p
}

// LocalParams is a single-node/dev-loop preset: sub-second cadences so a
// developer can watch microblocks and macroblocks roll by quickly.
func LocalParams() Parameters {
	p := TestnetParams()
	p.MicroblockInterval = 250 * time.Millisecond
	p.FinalityWindow = 8
	p.RotationInterval = 4
	p.MissedBlockTimeout = 500 * time.Millisecond
	p.MaxCommitPhase = 5 * time.Second
	p.MaxRevealPhase = 3 * time.Second
	return p
}

// Validate checks internal consistency of Parameters.
func (p Parameters) Validate() error {
	if p.RotationInterval == 0 {
		return ErrRotationIntervalInvalid
	}
	if p.FinalityWindow == 0 {
		return ErrFinalityWindowInvalid
	}
	if p.ReputationThreshold < 0 || p.ReputationThreshold > 100 {
		return ErrThresholdInvalid
	}
	if p.MaxTxPerMicroblock <= 0 {
		return ErrMaxTxInvalid
	}
	return nil
}

// QuorumSize returns ceil(2*n/3), the Byzantine quorum size for n committers
// (spec.md §3 Macroblock invariant, §4.7 Phase 3).
func QuorumSize(n int) int {
	if n <= 0 {
		return 0
	}
	return (2*n + 2) / 3
}
