package microblock

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/qnet-network/qnet-core/ids"
	"github.com/qnet-network/qnet-core/qnet/cert"
	"github.com/qnet-network/qnet-core/qnet/chain"
	"github.com/qnet-network/qnet-core/qnet/clock"
	"github.com/qnet-network/qnet-core/qnet/config"
	"github.com/qnet-network/qnet-core/qnet/crypto"
	"github.com/qnet-network/qnet-core/qnet/mempool"
	"github.com/qnet-network/qnet-core/qnet/metrics"
	"github.com/qnet-network/qnet-core/qnet/reputation"
	"github.com/qnet-network/qnet-core/qnet/storage"
	"github.com/qnet-network/qnet-core/qnet/types"
)

type zeroOracle struct{}

func (zeroOracle) ExpectedNonce(string) uint64 { return 0 }

type harness struct {
	pipeline *Pipeline
	ledger   *reputation.Ledger
	pool     *mempool.Pool
	nodeID   ids.NodeID
	params   config.Parameters
	clk      *clock.Fake
}

func newHarness(t *testing.T, nodeID ids.NodeID) *harness {
	t.Helper()
	params := config.LocalParams()

	pqPub, pqPriv, err := crypto.PQGenerateKey()
	require.NoError(t, err)

	certMgr, err := cert.NewManager(nodeID, pqPub, pqPriv, params, nil, nil)
	require.NoError(t, err)

	certCache, err := cert.NewCache(params.CertCacheCapacityFullSuper, nil, nil)
	require.NoError(t, err)
	current, _ := certMgr.Current()
	certCache.PutVerified(current)

	fakeClock := clock.NewFake(time.Unix(1700000000, 0).UTC())

	ledger := reputation.New(params, nil)
	ledger.Register(nodeID, reputation.Full, fakeClock.Now())

	ch, err := chain.New(storage.NewMemStore(), nil)
	require.NoError(t, err)

	pool := mempool.NewPool(0)

	p := New(nodeID, params, ch, pool, certCache, certMgr, ledger, fakeClock, nil)
	return &harness{pipeline: p, ledger: ledger, pool: pool, nodeID: nodeID, params: params, clk: fakeClock}
}

// soleEligibleNodeID picks a NodeId string that the deterministic selector
// will pick given it is the only eligible node (selection over a 1-element
// set always yields that element).
const soleEligibleNodeID = ids.NodeID("node-1")

func TestProduceBlockRequiresBeingSelectedProducer(t *testing.T) {
	h := newHarness(t, soleEligibleNodeID)

	block, err := h.pipeline.ProduceBlock(context.Background(), 0, zeroOracle{})
	require.NoError(t, err)
	require.Equal(t, uint64(0), block.Height)
	require.Equal(t, soleEligibleNodeID, block.Producer)
}

func TestValidateAndAppendAcceptsOwnProducedBlock(t *testing.T) {
	h := newHarness(t, soleEligibleNodeID)

	block, err := h.pipeline.ProduceBlock(context.Background(), 0, zeroOracle{})
	require.NoError(t, err)

	require.NoError(t, h.pipeline.ValidateAndAppend(context.Background(), block, 0))
	require.Equal(t, block.Height, h.pipeline.chain.Tip().Height)

	score, ok := h.ledger.Score(soleEligibleNodeID)
	require.True(t, ok)
	require.Greater(t, score, config.DefaultParams().ReputationStart)
}

func TestValidateAndAppendObservesProducedMetric(t *testing.T) {
	h := newHarness(t, soleEligibleNodeID)

	reg := prometheus.NewRegistry()
	collectors, err := metrics.New("qnet_test_pipeline", reg)
	require.NoError(t, err)
	h.pipeline.SetMetrics(collectors)

	block, err := h.pipeline.ProduceBlock(context.Background(), 0, zeroOracle{})
	require.NoError(t, err)
	require.NoError(t, h.pipeline.ValidateAndAppend(context.Background(), block, 0))

	families, err := reg.Gather()
	require.NoError(t, err)
	var found bool
	for _, fam := range families {
		if fam.GetName() != "qnet_test_pipeline_microblocks_produced_total" {
			continue
		}
		found = true
		require.Equal(t, float64(1), fam.GetMetric()[0].GetCounter().GetValue())
	}
	require.True(t, found)
}

func TestValidateAndAppendRejectsWrongHeight(t *testing.T) {
	h := newHarness(t, soleEligibleNodeID)

	block, err := h.pipeline.ProduceBlock(context.Background(), 0, zeroOracle{})
	require.NoError(t, err)
	block.Height = 5

	err = h.pipeline.ValidateAndAppend(context.Background(), block, 0)
	require.ErrorIs(t, err, ErrHeightNotNext)
}

func TestValidateAndAppendRejectsWrongProducer(t *testing.T) {
	h := newHarness(t, soleEligibleNodeID)

	block, err := h.pipeline.ProduceBlock(context.Background(), 0, zeroOracle{})
	require.NoError(t, err)
	block.Producer = "someone-else"

	err = h.pipeline.ValidateAndAppend(context.Background(), block, 0)
	require.ErrorIs(t, err, ErrWrongProducer)
}

func TestMissedSlotReturnsFailoverProducer(t *testing.T) {
	h := newHarness(t, soleEligibleNodeID)

	producer, err := h.pipeline.MissedSlot(0, 0)
	require.NoError(t, err)
	require.Equal(t, soleEligibleNodeID, producer)
}

func TestMissedSlotHaltsAfterEmergencyLimit(t *testing.T) {
	h := newHarness(t, soleEligibleNodeID)

	_, err := h.pipeline.MissedSlot(0, uint64(h.params.EmergencyChainLimit))
	require.ErrorIs(t, err, ErrProductionHalted)
}

func TestMissedSlotPenalizesScheduledProducer(t *testing.T) {
	h := newHarness(t, soleEligibleNodeID)

	before, ok := h.ledger.Score(soleEligibleNodeID)
	require.True(t, ok)

	_, err := h.pipeline.MissedSlot(0, 0)
	require.NoError(t, err)

	after, ok := h.ledger.Score(soleEligibleNodeID)
	require.True(t, ok)
	require.Less(t, after, before)
}

func TestForkChoicePicksEarlierTimestamp(t *testing.T) {
	early := &types.Block{Producer: "node-b", Timestamp: time.Unix(100, 0)}
	late := &types.Block{Producer: "node-a", Timestamp: time.Unix(200, 0)}

	require.Equal(t, early, ForkChoice([]*types.Block{late, early}))
}

func TestForkChoiceTieBreaksByLowerNodeID(t *testing.T) {
	a := &types.Block{Producer: "node-a", Timestamp: time.Unix(100, 0)}
	b := &types.Block{Producer: "node-b", Timestamp: time.Unix(100, 0)}

	require.Equal(t, a, ForkChoice([]*types.Block{b, a}))
}

func TestPohAdvanceMixesSecureAndFast(t *testing.T) {
	var p PohState
	p.Advance(8)
	require.Equal(t, uint64(8), p.Count)
	require.NotEqual(t, [32]byte{}, p.Secure)
	require.NotEqual(t, [32]byte{}, p.Fast)
}
