package cert

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/luxfi/log"

	"github.com/qnet-network/qnet-core/ids"
	"github.com/qnet-network/qnet-core/qnet/metrics"
)

// Tier identifies which trust tier a cached certificate currently occupies
// (spec.md §4.3 "Cert cache").
type Tier int

const (
	// TierPending holds certificates optimistically accepted, awaiting
	// async verification.
	TierPending Tier = iota
	// TierVerified holds certificates that have been fully PQ-verified.
	TierVerified
)

// PeerNotifier is the slice of the peer-layer collaborator interface (§6)
// the cert cache needs to apply rate/ban effects on verification failure
// (spec.md §4.3 "Rate/ban effects are delegated to the peer layer").
type PeerNotifier interface {
	Penalize(nodeID ids.NodeID, delta float64)
	Ban(nodeID ids.NodeID, duration time.Duration)
	ReportCritical(nodeID ids.NodeID, kind string)
}

// invalidCertWindow is the sliding window over which invalid-cert counts
// accumulate before a 1-year ban (spec.md §4.3).
const invalidCertWindow = 10 * time.Minute

// invalidCertBanThreshold is the count of invalid-cert events within the
// window that triggers a 1-year ban.
const invalidCertBanThreshold = 5

const oneYear = 365 * 24 * time.Hour

// Cache is the per-node two-tier certificate cache: a `verified` tier (fully
// PQ-verified) and a `pending` tier (optimistically accepted). LRU capacity
// is per node role (spec.md §4.3): Full/Super ~5000 entries, Light: 0.
type Cache struct {
	mu sync.RWMutex

	verified *lru.Cache[string, *Certificate]
	pending  *lru.Cache[string, *Certificate]

	// invalidCounts tracks invalid-cert events per announcing node within
	// invalidCertWindow, for the 5-strikes-in-10-minutes ban rule.
	invalidCounts map[ids.NodeID][]time.Time

	peers PeerNotifier
	log   log.Logger
	m     *metrics.Metrics
}

// SetMetrics attaches a collector bundle so Lookup hits/misses are
// observed. Optional: a nil bundle (the default) disables recording.
func (c *Cache) SetMetrics(m *metrics.Metrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m = m
}

// NewCache builds a two-tier cache with the given per-tier capacity. A
// capacity of 0 (Light nodes, spec.md §4.3) disables caching entirely:
// every lookup is a miss.
func NewCache(capacity int, peers PeerNotifier, logger log.Logger) (*Cache, error) {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	c := &Cache{
		invalidCounts: make(map[ids.NodeID][]time.Time),
		peers:         peers,
		log:           logger,
	}
	if capacity <= 0 {
		return c, nil
	}
	var err error
	c.verified, err = lru.New[string, *Certificate](capacity)
	if err != nil {
		return nil, err
	}
	c.pending, err = lru.New[string, *Certificate](capacity)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// PutVerified inserts a fully-verified certificate, removing any pending
// entry for the same serial.
func (c *Cache) PutVerified(cert *Certificate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.verified == nil {
		return
	}
	c.verified.Add(cert.SerialNumber, cert)
	if c.pending != nil {
		c.pending.Remove(cert.SerialNumber)
	}
}

// PutPending inserts an optimistically-accepted certificate awaiting async
// verification.
func (c *Cache) PutPending(cert *Certificate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return
	}
	c.pending.Add(cert.SerialNumber, cert)
}

// Lookup resolves a serial, reporting which tier it was found in (if any).
func (c *Cache) Lookup(serial string) (cert *Certificate, tier Tier, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.verified != nil {
		if v, found := c.verified.Get(serial); found {
			c.recordLookup(true)
			return v, TierVerified, true
		}
	}
	if c.pending != nil {
		if v, found := c.pending.Get(serial); found {
			c.recordLookup(true)
			return v, TierPending, true
		}
	}
	c.recordLookup(false)
	return nil, 0, false
}

func (c *Cache) recordLookup(hit bool) {
	if c.m == nil {
		return
	}
	if hit {
		c.m.CertCacheHits.Inc()
		return
	}
	c.m.CertCacheMisses.Inc()
}

// Promote moves a pending certificate that passed async verification into
// the verified tier.
func (c *Cache) Promote(serial string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil || c.verified == nil {
		return
	}
	if v, ok := c.pending.Peek(serial); ok {
		c.verified.Add(serial, v)
		c.pending.Remove(serial)
	}
}

// FailPending handles a pending certificate that failed async verification:
// it is removed from the cache, the announcer's reputation is penalized
// -20, an invalid-cert counter is incremented, and if that counter reaches 5
// within a 10-minute window the peer is banned for 1 year (spec.md §4.3).
func (c *Cache) FailPending(serial string, announcer ids.NodeID, now time.Time) {
	c.mu.Lock()
	if c.pending != nil {
		c.pending.Remove(serial)
	}
	times := append(c.invalidCounts[announcer], now)
	cutoff := now.Add(-invalidCertWindow)
	kept := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	c.invalidCounts[announcer] = kept
	count := len(kept)
	c.mu.Unlock()

	if c.peers != nil {
		c.peers.Penalize(announcer, -20)
	}
	c.log.Warn("certificate verification failed", "node_id", announcer.String(), "serial", serial, "strikes", count)

	if count >= invalidCertBanThreshold && c.peers != nil {
		c.peers.Ban(announcer, oneYear)
		c.log.Warn("peer banned for repeated invalid certificates", "node_id", announcer.String())
	}
}

// ReportSpoof reports a confirmed certificate forgery (as opposed to an
// ordinary verification failure): a permanent, critical-attack ban (spec.md
// §4.3, §7 "confirmed ... escalate to critical-attack → permanent ban").
func (c *Cache) ReportSpoof(nodeID ids.NodeID) {
	if c.peers != nil {
		c.peers.ReportCritical(nodeID, "cert_spoof")
	}
	c.log.Error("certificate spoof detected, permanent ban issued", "node_id", nodeID.String())
}
