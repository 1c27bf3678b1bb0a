package peer

import (
	"context"
	"sync"
	"time"

	"github.com/qnet-network/qnet-core/ids"
)

// Fake is an in-process Layer used by tests: Broadcast records messages
// instead of sending them over a network, Ban/Penalize/ReportCritical
// record their calls for assertions, and Request delegates to RequestFn
// without recording.
type Fake struct {
	mu        sync.Mutex
	Sent      []Message
	Banned    map[ids.NodeID]time.Duration
	Penalties map[ids.NodeID]float64
	Critical  map[ids.NodeID]CriticalKind
	Genesis   map[ids.NodeID]bool
	RequestFn func(ctx context.Context, p ids.NodeID, msg Message) (Message, error)
}

// NewFake creates an empty Fake peer layer.
func NewFake() *Fake {
	return &Fake{
		Banned:    make(map[ids.NodeID]time.Duration),
		Penalties: make(map[ids.NodeID]float64),
		Critical:  make(map[ids.NodeID]CriticalKind),
		Genesis:   make(map[ids.NodeID]bool),
	}
}

// Broadcast implements Layer.
func (f *Fake) Broadcast(ctx context.Context, msg Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sent = append(f.Sent, msg)
	return nil
}

// Request implements Layer.
func (f *Fake) Request(ctx context.Context, p ids.NodeID, msg Message) (Message, error) {
	if f.RequestFn != nil {
		return f.RequestFn(ctx, p, msg)
	}
	return nil, ErrNoResponse
}

// Ban implements Layer.
func (f *Fake) Ban(nodeID ids.NodeID, duration time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Banned[nodeID] = duration
	return nil
}

// Penalize implements Layer.
func (f *Fake) Penalize(nodeID ids.NodeID, delta float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Penalties[nodeID] += delta
	return nil
}

// ReportCritical implements Layer.
func (f *Fake) ReportCritical(nodeID ids.NodeID, kind CriticalKind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Critical[nodeID] = kind
	return nil
}

// IsGenesis implements Layer.
func (f *Fake) IsGenesis(nodeID ids.NodeID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Genesis[nodeID]
}
