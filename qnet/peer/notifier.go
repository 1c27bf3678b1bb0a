package peer

import (
	"time"

	"github.com/luxfi/log"

	"github.com/qnet-network/qnet-core/ids"
)

// CertNotifier adapts a Layer to the cert package's narrower PeerNotifier
// shape: no error returns, and ReportCritical's reason is a string rather
// than a CriticalKind. A failed rate/ban/report call must never block
// certificate verification (spec.md §4.3 "Rate/ban effects are delegated to
// the peer layer"), so failures are logged here rather than propagated.
type CertNotifier struct {
	layer Layer
	log   log.Logger
}

// NewCertNotifier builds a CertNotifier over layer.
func NewCertNotifier(layer Layer, logger log.Logger) *CertNotifier {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &CertNotifier{layer: layer, log: logger}
}

// Penalize implements cert.PeerNotifier.
func (n *CertNotifier) Penalize(nodeID ids.NodeID, delta float64) {
	if err := n.layer.Penalize(nodeID, delta); err != nil {
		n.log.Warn("peer layer penalize failed", "node_id", nodeID.String(), "error", err)
	}
}

// Ban implements cert.PeerNotifier.
func (n *CertNotifier) Ban(nodeID ids.NodeID, duration time.Duration) {
	if err := n.layer.Ban(nodeID, duration); err != nil {
		n.log.Warn("peer layer ban failed", "node_id", nodeID.String(), "error", err)
	}
}

// criticalKindOf maps the cert package's string reason codes onto this
// layer's CriticalKind enum.
func criticalKindOf(kind string) CriticalKind {
	switch kind {
	case "cert_spoof":
		return CriticalCertSpoof
	case "double_sign":
		return CriticalDoubleSign
	default:
		return CriticalUnknown
	}
}

// ReportCritical implements cert.PeerNotifier.
func (n *CertNotifier) ReportCritical(nodeID ids.NodeID, kind string) {
	if err := n.layer.ReportCritical(nodeID, criticalKindOf(kind)); err != nil {
		n.log.Warn("peer layer report_critical failed", "node_id", nodeID.String(), "kind", kind, "error", err)
	}
}
