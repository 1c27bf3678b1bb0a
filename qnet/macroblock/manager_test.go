package macroblock

import (
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
	"github.com/qnet-network/qnet-core/qnet/metrics"
	"github.com/qnet-network/qnet-core/qnet/reputation"
	"github.com/qnet-network/qnet-core/qnet/storage"
)

type managerHarness struct {
	mgr    *Manager
	ledger *reputation.Ledger
	params config.Parameters
	clk    *clock.Fake
}

func newManagerHarness(t *testing.T, nodeIDs []ids.NodeID) *managerHarness {
	t.Helper()
	params := config.LocalParams()

	ledger := reputation.New(params, nil)
	for _, n := range nodeIDs {
		ledger.Register(n, reputation.Full, start)
	}

	ch, err := chain.New(storage.NewMemStore(), nil)
	require.NoError(t, err)

	pqPub, pqPriv, err := crypto.PQGenerateKey()
	require.NoError(t, err)
	certMgr, err := cert.NewManager(ids.NodeID("self-node"), pqPub, pqPriv, params, nil, nil)
	require.NoError(t, err)

	fakeClock := clock.NewFake(start)
	mgr := NewManager(params, ch, ledger, certMgr, fakeClock, nil)
	return &managerHarness{mgr: mgr, ledger: ledger, params: params, clk: fakeClock}
}

func tenNodeIDs() []ids.NodeID {
	out := make([]ids.NodeID, 10)
	for i := range out {
		out[i] = ids.NodeID(string(rune('a' + i)))
	}
	return out
}

func TestOpenRoundUsesReputationThresholdCommitters(t *testing.T) {
	nodes := tenNodeIDs()
	h := newManagerHarness(t, nodes)

	r, err := h.mgr.OpenRound(0, 89, start)
	require.NoError(t, err)
	require.Equal(t, 10, r.CommitterCount())
	require.Equal(t, uint64(0), r.Number)
}

func TestOpenRoundFailsWithNoEligibleCommitters(t *testing.T) {
	h := newManagerHarness(t, nil)
	_, err := h.mgr.OpenRound(0, 89, start)
	require.ErrorIs(t, err, ErrNoCommitters)
}

func TestFinalizeAppendsMacroblockAndCreditsParticipants(t *testing.T) {
	nodes := tenNodeIDs()
	h := newManagerHarness(t, nodes)

	r, err := h.mgr.OpenRound(0, 89, start)
	require.NoError(t, err)

	committers := r.Committers()
	for i := 0; i < 9; i++ {
		n := committers[i]
		value := [32]byte{byte(i)}
		nonce := [32]byte{byte(i), 1}
		require.NoError(t, r.SubmitCommit(n, commitOf(value, nonce), start))
	}
	r.AdvanceToReveal(start)
	revealAt := start.Add(time.Second)
	for i := 0; i < 9; i++ {
		n := committers[i]
		value := [32]byte{byte(i)}
		nonce := [32]byte{byte(i), 1}
		require.NoError(t, r.SubmitReveal(n, value, nonce, revealAt))
	}

	macro, err := h.mgr.Finalize(r, nodes[0], [32]byte{42}, revealAt)
	require.NoError(t, err)
	require.Equal(t, uint64(0), macro.Height)
	require.Len(t, macro.ConsensusProof.Reveals, 9)
	require.Equal(t, 0, h.mgr.ConsecutiveFailures())

	leader, err := h.mgr.Leader(r)
	require.NoError(t, err)
	leaderScore, ok := h.ledger.Score(leader)
	require.True(t, ok)
	require.Greater(t, leaderScore, h.params.ReputationStart)

	silent := committers[9]
	silentScore, ok := h.ledger.Score(silent)
	require.True(t, ok)
	require.Less(t, silentScore, h.params.ReputationStart)
}

func TestFinalizeAppliesFailurePenaltiesAndIncrementsCounter(t *testing.T) {
	nodes := tenNodeIDs()
	h := newManagerHarness(t, nodes)

	r, err := h.mgr.OpenRound(0, 89, start)
	require.NoError(t, err)

	committers := r.Committers()
	for i := 0; i < 3; i++ {
		n := committers[i]
		value := [32]byte{byte(i)}
		nonce := [32]byte{byte(i), 1}
		require.NoError(t, r.SubmitCommit(n, commitOf(value, nonce), start))
	}
	r.AdvanceToReveal(start)
	revealAt := start.Add(time.Second)
	for i := 0; i < 3; i++ {
		n := committers[i]
		value := [32]byte{byte(i)}
		nonce := [32]byte{byte(i), 1}
		require.NoError(t, r.SubmitReveal(n, value, nonce, revealAt))
	}

	_, err = h.mgr.Finalize(r, nodes[0], [32]byte{42}, revealAt)
	require.ErrorIs(t, err, ErrQuorumNotMet)
	require.Equal(t, 1, h.mgr.ConsecutiveFailures())

	revealer := committers[0]
	revealerScore, ok := h.ledger.Score(revealer)
	require.True(t, ok)
	require.Greater(t, revealerScore, h.params.ReputationStart)

	silent := committers[9]
	silentScore, ok := h.ledger.Score(silent)
	require.True(t, ok)
	require.Less(t, silentScore, h.params.ReputationStart)
}

func TestFinalizeObservesRoundOutcomeMetric(t *testing.T) {
	nodes := tenNodeIDs()
	h := newManagerHarness(t, nodes)

	reg := prometheus.NewRegistry()
	collectors, err := metrics.New("qnet_test_macroblock", reg)
	require.NoError(t, err)
	h.mgr.SetMetrics(collectors)

	r, err := h.mgr.OpenRound(0, 89, start)
	require.NoError(t, err)
	committers := r.Committers()
	for i := 0; i < 3; i++ {
		n := committers[i]
		value := [32]byte{byte(i)}
		nonce := [32]byte{byte(i), 1}
		require.NoError(t, r.SubmitCommit(n, commitOf(value, nonce), start))
	}
	r.AdvanceToReveal(start)
	revealAt := start.Add(time.Second)
	for i := 0; i < 3; i++ {
		n := committers[i]
		value := [32]byte{byte(i)}
		nonce := [32]byte{byte(i), 1}
		require.NoError(t, r.SubmitReveal(n, value, nonce, revealAt))
	}

	_, err = h.mgr.Finalize(r, nodes[0], [32]byte{42}, revealAt)
	require.ErrorIs(t, err, ErrQuorumNotMet)

	families, err := reg.Gather()
	require.NoError(t, err)
	var sawFailed bool
	for _, fam := range families {
		if fam.GetName() != "qnet_test_macroblock_macroblock_rounds_total" {
			continue
		}
		for _, m := range fam.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "outcome" && label.GetValue() == metrics.OutcomeFailed {
					sawFailed = true
					require.Equal(t, float64(1), m.GetCounter().GetValue())
				}
			}
		}
	}
	require.True(t, sawFailed)
}

func TestEligibilityThresholdFallsBackToSurvivalAfterThreeFailures(t *testing.T) {
	nodes := tenNodeIDs()
	h := newManagerHarness(t, nodes)
	require.Equal(t, h.params.ReputationThreshold, h.mgr.EligibilityThreshold())

	h.mgr.consecutiveFailures = 3
	require.Equal(t, h.params.SurvivalThreshold, h.mgr.EligibilityThreshold())
}
