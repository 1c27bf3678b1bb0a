package peer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/qnet-network/qnet-core/ids"
)

func TestCertNotifierDelegatesToLayer(t *testing.T) {
	fake := NewFake()
	n := NewCertNotifier(fake, nil)

	n.Penalize("node-1", -20)
	require.Equal(t, float64(-20), fake.Penalties["node-1"])

	n.Ban("node-1", 365*24*time.Hour)
	require.Equal(t, 365*24*time.Hour, fake.Banned["node-1"])

	n.ReportCritical("node-2", "cert_spoof")
	require.Equal(t, CriticalCertSpoof, fake.Critical["node-2"])

	n.ReportCritical("node-3", "double_sign")
	require.Equal(t, CriticalDoubleSign, fake.Critical["node-3"])

	n.ReportCritical("node-4", "unknown-reason")
	require.Equal(t, CriticalUnknown, fake.Critical["node-4"])
}

func TestCertNotifierSatisfiesCertPeerNotifierShape(t *testing.T) {
	var _ interface {
		Penalize(nodeID ids.NodeID, delta float64)
		Ban(nodeID ids.NodeID, duration time.Duration)
		ReportCritical(nodeID ids.NodeID, kind string)
	} = NewCertNotifier(NewFake(), nil)
}
