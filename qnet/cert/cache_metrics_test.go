package cert

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/qnet-network/qnet-core/qnet/config"
	"github.com/qnet-network/qnet-core/qnet/crypto"
	"github.com/qnet-network/qnet-core/qnet/metrics"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestCacheLookupRecordsHitsAndMisses(t *testing.T) {
	params := config.DefaultParams()
	cache, err := NewCache(params.CertCacheCapacityFullSuper, nil, nil)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m, err := metrics.New("qnet_test", reg)
	require.NoError(t, err)
	cache.SetMetrics(m)

	_, _, ok := cache.Lookup("unknown-serial")
	require.False(t, ok)
	require.Equal(t, float64(1), counterValue(t, m.CertCacheMisses))

	pqPub, pqPriv, err := crypto.PQGenerateKey()
	require.NoError(t, err)
	t.Cleanup(pqPriv.Zeroize)
	c, _, err := Issue("node-1", pqPub, pqPriv, "serial-1", time.Now(), 270*time.Second)
	require.NoError(t, err)
	cache.PutVerified(c)

	_, tier, ok := cache.Lookup("serial-1")
	require.True(t, ok)
	require.Equal(t, TierVerified, tier)
	require.Equal(t, float64(1), counterValue(t, m.CertCacheHits))
}
