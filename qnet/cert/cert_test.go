package cert

import (
	"testing"
	"time"

	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/qnet-network/qnet-core/ids"
	"github.com/qnet-network/qnet-core/qnet/config"
	"github.com/qnet-network/qnet-core/qnet/crypto"
)

func issueTestCert(t *testing.T, nodeID ids.NodeID, issuedAt time.Time, lifetime time.Duration) (*Certificate, []byte) {
	t.Helper()
	pqPub, pqPriv, err := crypto.PQGenerateKey()
	require.NoError(t, err)
	t.Cleanup(pqPriv.Zeroize)

	c, edPriv, err := Issue(nodeID, pqPub, pqPriv, "serial-1", issuedAt, lifetime)
	require.NoError(t, err)
	require.True(t, c.VerifyEncapsulation())

	hash := crypto.HSecure([]byte("block-payload"))
	sig, err := SignCompact(nodeID, c, edPriv, pqPriv, hash[:], issuedAt)
	require.NoError(t, err)
	_ = sig
	return c, hash[:]
}

func TestIssueAndVerifyEncapsulation(t *testing.T) {
	now := time.Now()
	c, _ := issueTestCert(t, "node-1", now, 270*time.Second)
	require.Equal(t, now.Add(270*time.Second), c.ExpiresAt)
	require.True(t, c.VerifyEncapsulation())

	tampered := *c
	tampered.NodeID = "node-2"
	require.False(t, tampered.VerifyEncapsulation())
}

func TestCacheVerifyCompactMissThenAccept(t *testing.T) {
	params := config.DefaultParams()
	cache, err := NewCache(params.CertCacheCapacityFullSuper, nil, log.NewNoOpLogger())
	require.NoError(t, err)

	now := time.Now()
	pqPub, pqPriv, err := crypto.PQGenerateKey()
	require.NoError(t, err)
	defer pqPriv.Zeroize()

	c, edPriv, err := Issue("node-1", pqPub, pqPriv, "serial-1", now, params.CertLifetime)
	require.NoError(t, err)

	hash := crypto.HSecure([]byte("block-1"))
	sig, err := SignCompact("node-1", c, edPriv, pqPriv, hash[:], now)
	require.NoError(t, err)

	outcome, err := cache.VerifyCompact(sig, "node-1", hash[:], now, params)
	require.ErrorIs(t, err, ErrCertMissing)
	require.Equal(t, OutcomePendingMiss, outcome)

	cache.PutVerified(c)
	outcome, err = cache.VerifyCompact(sig, "node-1", hash[:], now, params)
	require.NoError(t, err)
	require.Equal(t, OutcomeAcceptedVerified, outcome)
}

func TestCachePendingOptimisticAcceptThenFail(t *testing.T) {
	params := config.DefaultParams()
	var penalized []ids.NodeID
	notifier := &fakeNotifier{penalize: func(n ids.NodeID, d float64) { penalized = append(penalized, n) }}
	cache, err := NewCache(params.CertCacheCapacityFullSuper, notifier, log.NewNoOpLogger())
	require.NoError(t, err)

	now := time.Now()
	pqPub, pqPriv, err := crypto.PQGenerateKey()
	require.NoError(t, err)
	defer pqPriv.Zeroize()
	c, edPriv, err := Issue("node-1", pqPub, pqPriv, "serial-1", now, params.CertLifetime)
	require.NoError(t, err)

	hash := crypto.HSecure([]byte("block-1"))
	sig, err := SignCompact("node-1", c, edPriv, pqPriv, hash[:], now)
	require.NoError(t, err)

	cache.PutPending(c)
	outcome, err := cache.VerifyCompact(sig, "node-1", hash[:], now, params)
	require.NoError(t, err)
	require.Equal(t, OutcomeAcceptedOptimistic, outcome)

	cache.FailPending(c.SerialNumber, "node-1", now)
	require.Len(t, penalized, 1)
	_, _, ok := cache.Lookup(c.SerialNumber)
	require.False(t, ok)
}

func TestCertExpiredRejected(t *testing.T) {
	params := config.DefaultParams()
	pqPub, pqPriv, err := crypto.PQGenerateKey()
	require.NoError(t, err)
	defer pqPriv.Zeroize()

	issuedAt := time.Now().Add(-400 * time.Second)
	c, edPriv, err := Issue("node-1", pqPub, pqPriv, "serial-1", issuedAt, params.CertLifetime)
	require.NoError(t, err)

	hash := crypto.HSecure([]byte("block-1"))
	sig, err := SignCompact("node-1", c, edPriv, pqPriv, hash[:], issuedAt)
	require.NoError(t, err)

	cache, err := NewCache(params.CertCacheCapacityFullSuper, nil, log.NewNoOpLogger())
	require.NoError(t, err)
	cache.PutVerified(c)

	outcome, err := cache.VerifyCompact(sig, "node-1", hash[:], time.Now(), params)
	require.ErrorIs(t, err, ErrCertExpired)
	require.Equal(t, OutcomeRejected, outcome)
}

func TestPersistCompressRoundTrip(t *testing.T) {
	pqPub, pqPriv, err := crypto.PQGenerateKey()
	require.NoError(t, err)
	defer pqPriv.Zeroize()
	c, _, err := Issue("node-1", pqPub, pqPriv, "serial-1", time.Now(), 270*time.Second)
	require.NoError(t, err)

	blob, err := CompressForDisk(c)
	require.NoError(t, err)

	restored, err := DecompressFromDisk(blob)
	require.NoError(t, err)
	require.Equal(t, c.NodeID, restored.NodeID)
	require.Equal(t, c.SerialNumber, restored.SerialNumber)
	require.Equal(t, c.Ed25519PublicKey, restored.Ed25519PublicKey)
	require.True(t, restored.VerifyEncapsulation())
}

func TestPendingQueueTTLExpiry(t *testing.T) {
	q := NewPendingQueue(5*time.Second, log.NewNoOpLogger())
	now := time.Now()
	q.Enqueue("serial-x", "node-1", "payload", now)
	require.Equal(t, 1, q.Len())

	expired := q.ExpireOlderThan(now.Add(6 * time.Second))
	require.Len(t, expired, 1)
	require.Equal(t, 0, q.Len())
}

func TestManagerRotation(t *testing.T) {
	params := config.TestnetParams()
	pqPub, pqPriv, err := crypto.PQGenerateKey()
	require.NoError(t, err)
	defer pqPriv.Zeroize()

	m, err := NewManager("node-1", pqPub, pqPriv, params, nil, log.NewNoOpLogger())
	require.NoError(t, err)
	first, _ := m.Current()

	require.NoError(t, m.MaybeRotate(time.Now()))
	second, _ := m.Current()
	require.Equal(t, first.SerialNumber, second.SerialNumber, "no rotation before threshold")

	require.NoError(t, m.MaybeRotate(time.Now().Add(params.CertRotation+time.Second)))
	third, _ := m.Current()
	require.NotEqual(t, first.SerialNumber, third.SerialNumber, "rotation after threshold")
}

type fakeNotifier struct {
	penalize func(ids.NodeID, float64)
}

func (f *fakeNotifier) Penalize(n ids.NodeID, d float64)       { f.penalize(n, d) }
func (f *fakeNotifier) Ban(ids.NodeID, time.Duration)          {}
func (f *fakeNotifier) ReportCritical(ids.NodeID, string)      {}
