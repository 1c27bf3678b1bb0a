package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersAllCollectorsExactlyOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New("qnet", reg)
	require.NoError(t, err)
	require.NotNil(t, m)

	_, err = New("qnet", reg)
	require.Error(t, err, "registering the same collectors twice must fail")
}

func TestObserveRoundIncrementsLabeledCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New("qnet", reg)
	require.NoError(t, err)

	m.ObserveRound(OutcomeFinalized)
	m.ObserveRound(OutcomeFinalized)
	m.ObserveRound(OutcomeFailed)

	families, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, fam := range families {
		if fam.GetName() != "qnet_macroblock_rounds_total" {
			continue
		}
		found = true
		for _, metric := range fam.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "outcome" && label.GetValue() == OutcomeFinalized {
					require.Equal(t, float64(2), metric.GetCounter().GetValue())
				}
				if label.GetName() == "outcome" && label.GetValue() == OutcomeFailed {
					require.Equal(t, float64(1), metric.GetCounter().GetValue())
				}
			}
		}
	}
	require.True(t, found, "macroblock_rounds_total family must be gathered")
}
