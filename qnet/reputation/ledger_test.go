package reputation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/qnet-network/qnet-core/qnet/config"
)

func TestRegisterStartsAt70(t *testing.T) {
	l := New(config.DefaultParams(), nil)
	l.Register("node-1", Full, time.Now())
	score, ok := l.Score("node-1")
	require.True(t, ok)
	require.Equal(t, 70.0, score)
}

func TestApplyClampsToBounds(t *testing.T) {
	l := New(config.DefaultParams(), nil)
	l.Register("node-1", Full, time.Now())
	now := time.Now()
	for i := 0; i < 50; i++ {
		l.Apply("node-1", EventMacroblockLeaderSuccess, now)
	}
	score, _ := l.Score("node-1")
	require.Equal(t, 100.0, score)

	for i := 0; i < 50; i++ {
		l.Apply("node-1", EventMacroblockRoundFailed, now)
	}
	score, _ = l.Score("node-1")
	require.Equal(t, 0.0, score)
}

func TestS1ProducerGains1AfterMicroblockProduced(t *testing.T) {
	l := New(config.DefaultParams(), nil)
	l.Register("node-2", Full, time.Now())
	l.ApplyDelta("node-2", 80-70, time.Now()) // seed to 80 per scenario S1
	score, _ := l.Score("node-2")
	require.Equal(t, 80.0, score)

	l.Apply("node-2", EventMicroblockProduced, time.Now())
	score, _ = l.Score("node-2")
	require.Equal(t, 81.0, score)
}

func TestS2EmergencyTakeoverDeltas(t *testing.T) {
	l := New(config.DefaultParams(), nil)
	l.Register("node-2", Full, time.Now())
	l.Register("node-4", Full, time.Now())
	l.ApplyDelta("node-2", 10, time.Now())
	l.ApplyDelta("node-4", 10, time.Now())

	l.Apply("node-2", EventMicroblockFailed, time.Now())
	l.Apply("node-4", EventEmergencyProducerSuccess, time.Now())

	s2, _ := l.Score("node-2")
	s4, _ := l.Score("node-4")
	require.Equal(t, 60.0, s2)
	require.Equal(t, 85.0, s4)
	require.False(t, l.ConsensusEligible("node-2", 70))
}

func TestBanZeroesScore(t *testing.T) {
	l := New(config.DefaultParams(), nil)
	l.Register("node-3", Super, time.Now())
	l.Ban("node-3", time.Now())
	score, _ := l.Score("node-3")
	require.Equal(t, 0.0, score)
	require.False(t, l.ConsensusEligible("node-3", 70))
}

func TestEligibleSetExcludesLightNodes(t *testing.T) {
	l := New(config.DefaultParams(), nil)
	l.Register("full-1", Full, time.Now())
	l.Register("super-1", Super, time.Now())
	l.Register("light-1", Light, time.Now())

	eligible := l.EligibleSet(70)
	require.Len(t, eligible, 2)
}

func TestHistoryBoundedRing(t *testing.T) {
	params := config.DefaultParams()
	params.ReputationHistorySize = 3
	l := New(params, nil)
	l.Register("node-1", Full, time.Now())
	now := time.Now()
	for i := 0; i < 5; i++ {
		l.Apply("node-1", EventPingSuccess, now.Add(time.Duration(i)*time.Second))
	}
	hist := l.History("node-1")
	require.Len(t, hist, 3)
}
