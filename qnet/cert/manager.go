package cert

import (
	"crypto/ed25519"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/luxfi/log"

	"github.com/qnet-network/qnet-core/ids"
	"github.com/qnet-network/qnet-core/qnet/config"
	"github.com/qnet-network/qnet-core/qnet/crypto"
)

// Announcer is the slice of the peer-layer collaborator interface (§6) the
// certificate manager needs to broadcast a freshly issued certificate.
type Announcer interface {
	Broadcast(msg any)
}

// Manager owns this node's own certificate lifecycle: issuing at startup,
// rotating at 80% lifetime, and keeping the previous certificate valid
// through its own expiry for the ~54s grace window (spec.md §4.3
// "Certificate issuance").
type Manager struct {
	mu sync.RWMutex

	nodeID ids.NodeID
	params config.Parameters

	current  *Certificate
	currentEdPriv ed25519.PrivateKey
	previous *Certificate
	previousEdPriv ed25519.PrivateKey

	pqPub  crypto.PQPublicKey
	pqPriv *crypto.PQPrivateKey

	announcer Announcer
	log       log.Logger
}

// NewManager builds a Manager and issues the node's first certificate.
func NewManager(nodeID ids.NodeID, pqPub crypto.PQPublicKey, pqPriv *crypto.PQPrivateKey, params config.Parameters, announcer Announcer, logger log.Logger) (*Manager, error) {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	m := &Manager{
		nodeID:    nodeID,
		params:    params,
		pqPub:     pqPub,
		pqPriv:    pqPriv,
		announcer: announcer,
		log:       logger,
	}
	if err := m.rotate(time.Now()); err != nil {
		return nil, err
	}
	return m, nil
}

// Current returns the node's current certificate and matching classical key.
func (m *Manager) Current() (*Certificate, ed25519.PrivateKey) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current, m.currentEdPriv
}

// PQPrivate returns the node's long-lived Dilithium secret key, used
// alongside Current's classical key to produce CompactSignature/
// FullSignature pairs (spec.md §4.1 pq_sign).
func (m *Manager) PQPrivate() *crypto.PQPrivateKey {
	return m.pqPriv
}

// MaybeRotate issues a new certificate if the current one has reached the
// 80% rotation threshold, retiring the old one to `previous` so it stays
// valid for its own remaining grace window (spec.md §4.3).
func (m *Manager) MaybeRotate(now time.Time) error {
	m.mu.RLock()
	needsRotation := m.current == nil || m.current.ShouldRotate(now, m.params)
	m.mu.RUnlock()
	if !needsRotation {
		return nil
	}
	return m.rotate(now)
}

func (m *Manager) rotate(now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	serial := fmt.Sprintf("%s-%s", m.nodeID, uuid.NewString())
	newCert, newPriv, err := Issue(m.nodeID, m.pqPub, m.pqPriv, serial, now, m.params.CertLifetime)
	if err != nil {
		return fmt.Errorf("cert: rotate: %w", err)
	}

	if m.current != nil {
		if m.previousEdPriv != nil {
			crypto.ZeroizeClassicalKey(m.previousEdPriv)
		}
		m.previous = m.current
		m.previousEdPriv = m.currentEdPriv
	}
	m.current = newCert
	m.currentEdPriv = newPriv

	m.log.Info("issued new certificate",
		"node_id", m.nodeID.String(),
		"serial", newCert.SerialNumber,
		"expires_at", newCert.ExpiresAt)

	if m.announcer != nil {
		m.announcer.Broadcast(CertAnnounce{Certificate: *newCert})
	}
	return nil
}

// CertAnnounce is the wire message a node broadcasts when it issues a new
// certificate (spec.md §4.3 "announces the certificate via P2P").
type CertAnnounce struct {
	Certificate Certificate
}
