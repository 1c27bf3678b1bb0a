// Package microblock implements the microblock pipeline (C6): the
// 1-second-cadence producer loop, the validator path, emergency-producer
// failover, and longest-chain fork choice (spec.md §4.6).
package microblock

import (
	"context"
	"errors"
	"sync"

	"github.com/luxfi/log"

	"github.com/qnet-network/qnet-core/ids"
	"github.com/qnet-network/qnet-core/qnet/cert"
	"github.com/qnet-network/qnet-core/qnet/chain"
	"github.com/qnet-network/qnet-core/qnet/clock"
	"github.com/qnet-network/qnet-core/qnet/config"
	"github.com/qnet-network/qnet-core/qnet/mempool"
	"github.com/qnet-network/qnet-core/qnet/metrics"
	"github.com/qnet-network/qnet-core/qnet/reputation"
	"github.com/qnet-network/qnet-core/qnet/selector"
	"github.com/qnet-network/qnet-core/qnet/types"
)

var (
	// ErrNotProducer means this node was not selected to produce the
	// requested height.
	ErrNotProducer = errors.New("microblock: this node is not the selected producer")
	// ErrWrongProducer means the block's stated producer does not match the
	// Producer Selector's output for its height (spec.md §4.6 validator
	// path step 2).
	ErrWrongProducer = errors.New("microblock: block producer does not match selector output")
	// ErrHeightNotNext means the block does not extend the local tip.
	ErrHeightNotNext = errors.New("microblock: block height is not local_tip + 1")
	// ErrInvalidTransaction is returned when a block contains a transaction
	// whose client signature does not verify (spec.md §4.6 validator path
	// step 5). Transaction nonces are not re-checked on this path.
	ErrInvalidTransaction = errors.New("microblock: transaction signature invalid")
	// ErrSignatureInvalid covers every certificate/signature verification
	// failure from the cert package, wrapped here so callers can branch on
	// one sentinel regardless of cause.
	ErrSignatureInvalid = errors.New("microblock: signature verification failed")
	// ErrProductionHalted is returned once the emergency chain limit is
	// exhausted: production stays halted until the next macroblock
	// finalizes a new eligibility set (spec.md §4.6 "Emergency producer").
	ErrProductionHalted = errors.New("microblock: production halted after emergency chain limit")
)

// Pipeline wires the microblock producer loop and validator path over the
// chain, mempool, certificate, reputation, and selector collaborators.
type Pipeline struct {
	mu sync.Mutex

	selfID ids.NodeID
	params config.Parameters

	chain     *chain.Chain
	pool      mempool.Mempool
	certCache *cert.Cache
	certMgr   *cert.Manager
	ledger    *reputation.Ledger
	clk       clock.Clock
	log       log.Logger

	poh          PohState
	missedStreak uint64

	metrics *metrics.Metrics
}

// SetMetrics attaches a collector bundle so production/rejection counts are
// observed. Optional: a nil bundle (the default) disables recording.
func (p *Pipeline) SetMetrics(collectors *metrics.Metrics) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metrics = collectors
}

// New builds a Pipeline.
func New(selfID ids.NodeID, params config.Parameters, ch *chain.Chain, pool mempool.Mempool, certCache *cert.Cache, certMgr *cert.Manager, ledger *reputation.Ledger, clk clock.Clock, logger log.Logger) *Pipeline {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Pipeline{
		selfID:    selfID,
		params:    params,
		chain:     ch,
		pool:      pool,
		certCache: certCache,
		certMgr:   certMgr,
		ledger:    ledger,
		clk:       clk,
		log:       logger,
	}
}

// eligibleSorted returns the canonical eligible set for producer selection
// (spec.md §4.5 step 2).
func (p *Pipeline) eligibleSorted() []ids.NodeID {
	return selector.CanonicalizeEligible(p.ledger.EligibleSet(p.params.ReputationThreshold))
}

func (p *Pipeline) prevMacroHash() ids.ID {
	if m := p.chain.MacroTip(); m != nil {
		return m.Hash()
	}
	return ids.ID{}
}

// ExpectedProducer returns the Producer Selector's output for height h
// (spec.md §4.5), given missedCount emergency failovers already attempted
// this round.
func (p *Pipeline) ExpectedProducer(h uint64, missedCount uint64) (ids.NodeID, error) {
	round := selector.Round(h, p.params.RotationInterval)
	return selector.SelectProducer(round, p.prevMacroHash(), p.eligibleSorted(), missedCount)
}

// ProduceBlock assembles, signs, and returns the next microblock if selfID
// is the expected producer for local_tip+1 (spec.md §4.6 producer loop
// steps 1-7; broadcast is the caller's responsibility via peer.Layer).
func (p *Pipeline) ProduceBlock(ctx context.Context, missedCount uint64, oracle mempool.NonceOracle) (*types.Block, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tip := p.chain.Tip()
	height := uint64(0)
	if tip != nil {
		height = tip.Height + 1
	}

	expected, err := p.ExpectedProducer(height, missedCount)
	if err != nil {
		return nil, err
	}
	if expected != p.selfID {
		return nil, ErrNotProducer
	}

	drained := p.pool.DrainBest(p.params.MaxTxPerMicroblock, oracle)
	txs := make([]types.Transaction, 0, len(drained))
	for _, tx := range drained {
		if !tx.VerifySignature() {
			p.pool.Evict(tx.Hash)
			continue
		}
		txs = append(txs, *tx)
	}

	p.poh.Advance(p.params.PohHashesPerSlot)

	block := &types.Block{
		Height:       height,
		Timestamp:    p.clk.Now(),
		Transactions: txs,
		Producer:     p.selfID,
		PohHash:      p.poh.Hash(),
		PohCount:     p.poh.Count,
	}
	if tip != nil {
		block.PreviousHash = tip.Hash()
		if block.PohCount < tip.PohCount {
			block.PohCount = tip.PohCount
		}
	}

	curCert, edPriv := p.certMgr.Current()
	canonicalHash := block.Hash()
	sig, err := cert.SignCompact(p.selfID, curCert, edPriv, p.certMgr.PQPrivate(), canonicalHash[:], p.clk.Now())
	if err != nil {
		return nil, err
	}
	block.Signature = sig

	p.log.Debug("produced microblock", "height", height, "tx_count", len(txs))
	return block, nil
}

// ValidateAndAppend runs the validator path (spec.md §4.6 steps 1-6) and, on
// success, appends block to the chain, evicts its included transactions
// from the mempool, and credits the producer's reputation. Each transaction
// is re-checked for its client signature only; nonces are not re-checked.
func (p *Pipeline) ValidateAndAppend(ctx context.Context, block *types.Block, missedCount uint64) error {
	tip := p.chain.Tip()
	expectedHeight := uint64(0)
	if tip != nil {
		expectedHeight = tip.Height + 1
	}
	if block.Height != expectedHeight {
		return ErrHeightNotNext
	}

	expectedProducer, err := p.ExpectedProducer(block.Height, missedCount)
	if err != nil {
		return err
	}
	if block.Producer != expectedProducer {
		p.ledger.Apply(block.Producer, reputation.EventMicroblockFailed, p.clk.Now())
		p.observeRejected()
		return ErrWrongProducer
	}

	if tip != nil {
		if block.PreviousHash != tip.Hash() {
			return chain.ErrPreviousHashMismatch
		}
		if block.PohCount < tip.PohCount {
			return chain.ErrPohRegressed
		}
	}

	canonicalHash := block.Hash()
	outcome, err := p.certCache.VerifyCompact(block.Signature, string(block.Producer), canonicalHash[:], p.clk.Now(), p.params)
	if err != nil || outcome == cert.OutcomeRejected {
		p.ledger.Apply(block.Producer, reputation.EventMicroblockFailed, p.clk.Now())
		p.observeRejected()
		return ErrSignatureInvalid
	}
	if outcome == cert.OutcomePendingMiss {
		return cert.ErrCertMissing
	}

	for i := range block.Transactions {
		if !block.Transactions[i].VerifySignature() {
			p.ledger.Apply(block.Producer, reputation.EventMicroblockFailed, p.clk.Now())
			p.observeRejected()
			return ErrInvalidTransaction
		}
	}

	if err := p.chain.Append(block); err != nil {
		return err
	}

	for i := range block.Transactions {
		p.pool.Evict(block.Transactions[i].Hash)
	}

	if missedCount == 0 {
		p.ledger.Apply(block.Producer, reputation.EventMicroblockProduced, p.clk.Now())
	} else {
		p.ledger.Apply(block.Producer, reputation.EventEmergencyProducerSuccess, p.clk.Now())
	}
	p.observeProduced()
	return nil
}

func (p *Pipeline) observeProduced() {
	if p.metrics != nil {
		p.metrics.MicroblocksProduced.Inc()
	}
}

func (p *Pipeline) observeRejected() {
	if p.metrics != nil {
		p.metrics.MicroblocksRejected.Inc()
	}
}

// MissedSlot records that the expected slot timed out (spec.md §4.6
// "MISSED_BLOCK_TIMEOUT = 2s") and returns the next failover producer along
// with whether failover may still proceed (the chain caps at
// EmergencyChainLimit consecutive failovers).
func (p *Pipeline) MissedSlot(height uint64, missedCount uint64) (ids.NodeID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if missedCount >= uint64(p.params.EmergencyChainLimit) {
		return "", ErrProductionHalted
	}

	// The node that was scheduled but failed to produce within
	// MISSED_BLOCK_TIMEOUT is penalized -20, independent of whatever
	// failover producer takes over next (spec.md §4.4 "missed slot: -20").
	if scheduled, err := p.ExpectedProducer(height, missedCount); err == nil {
		p.ledger.Apply(scheduled, reputation.EventMicroblockFailed, p.clk.Now())
	}

	round := selector.Round(height, p.params.RotationInterval)
	return selector.SelectProducer(round, p.prevMacroHash(), p.eligibleSorted(), missedCount+1)
}

// ForkChoice picks the canonical tip among competing candidate blocks at the
// same height: longest valid chain (modeled here as the candidate set
// itself, since each candidate already represents one chain's tip at this
// height), tie-broken by earlier Timestamp then lexicographically-lower
// Producer NodeId (spec.md §4.6 "Fork choice").
func ForkChoice(candidates []*types.Block) *types.Block {
	if len(candidates) == 0 {
		return nil
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Timestamp.Before(best.Timestamp) {
			best = c
			continue
		}
		if c.Timestamp.Equal(best.Timestamp) && c.Producer.Compare(best.Producer) < 0 {
			best = c
		}
	}
	return best
}
