// Package keymanager persists each node's lattice signing seed at rest and
// exposes the process-wide signing/verification surface built on it
// (spec.md §4.2).
package keymanager

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/qnet-network/qnet-core/ids"
	"github.com/qnet-network/qnet-core/qnet/crypto"
)

const (
	// seedEncryptionDomain separates the at-rest AEAD key derivation from
	// every other use of node_id in H_secure (spec.md §4.2).
	seedEncryptionDomain = "QNET_KEY_ENCRYPTION_V1"
	// seedDerivationDomain separates first-launch seed generation from the
	// encryption key above, so compromising one never reveals the other.
	seedDerivationDomain = "QNET_SEED_V1"

	seedDirName  = "keys"
	seedFileName = "node_dilithium.seed"
)

// ErrCorruptSeedFile means the on-disk seed file is too short to contain a
// nonce and ciphertext.
var ErrCorruptSeedFile = errors.New("keymanager: seed file is shorter than nonce+ciphertext")

// Manager is the per-process signing context for one node: it holds the
// node's Dilithium keypair, derived deterministically from a seed that is
// generated once at first launch and persisted encrypted at rest
// (spec.md §4.2).
type Manager struct {
	mu sync.Mutex

	nodeID ids.NodeID
	path   string

	pub  crypto.PQPublicKey
	priv *crypto.PQPrivateKey
}

var (
	singletonMu sync.Mutex
	singleton   *Manager
)

// Open returns the process singleton Manager, constructing it on first call
// and never re-creating it afterward: the PQ crypto context is expensive to
// initialize, and every caller in a process signs/verifies on behalf of the
// same node (spec.md §4.2 "A singleton of the PQ crypto context is
// maintained per process ... lazily constructed under a mutex and never
// re-created"). Subsequent calls, even with different arguments, return the
// first instance.
func Open(dataDir string, nodeID ids.NodeID) (*Manager, error) {
	singletonMu.Lock()
	defer singletonMu.Unlock()
	if singleton != nil {
		return singleton, nil
	}
	m, err := newManager(dataDir, nodeID)
	if err != nil {
		return nil, err
	}
	singleton = m
	return m, nil
}

func newManager(dataDir string, nodeID ids.NodeID) (*Manager, error) {
	m := &Manager{
		nodeID: nodeID,
		path:   filepath.Join(dataDir, seedDirName, seedFileName),
	}
	if err := m.loadOrCreate(); err != nil {
		return nil, err
	}
	return m, nil
}

func encryptionKey(nodeID ids.NodeID) []byte {
	key := crypto.HSecure([]byte(nodeID), []byte(seedEncryptionDomain))
	return key[:]
}

// deterministicSeed derives the node's signing seed from its node_id alone,
// so every node regenerates the identical keypair from the identical
// node_id without ever persisting the seed in the clear (spec.md §4.2 "Seed
// is generated deterministically from node_id at first launch").
func deterministicSeed(nodeID ids.NodeID) []byte {
	seed := crypto.HSecure([]byte(nodeID), []byte(seedDerivationDomain))
	return seed[:]
}

func (m *Manager) loadOrCreate() error {
	raw, err := os.ReadFile(m.path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("keymanager: read seed file: %w", err)
		}
		return m.generateAndPersist()
	}
	return m.decryptAndLoad(raw)
}

func (m *Manager) generateAndPersist() error {
	seed := deterministicSeed(m.nodeID)
	pub, priv, err := crypto.PQKeyFromSeed(seed)
	if err != nil {
		return fmt.Errorf("keymanager: derive keypair: %w", err)
	}

	nonce, ct, err := crypto.AEADEncrypt(encryptionKey(m.nodeID), seed)
	if err != nil {
		return fmt.Errorf("keymanager: encrypt seed: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o700); err != nil {
		return fmt.Errorf("keymanager: create key directory: %w", err)
	}
	if err := os.WriteFile(m.path, append(nonce, ct...), 0o600); err != nil {
		return fmt.Errorf("keymanager: write seed file: %w", err)
	}

	m.pub, m.priv = pub, priv
	return nil
}

func (m *Manager) decryptAndLoad(raw []byte) error {
	if len(raw) < crypto.AEADNonceSize {
		return ErrCorruptSeedFile
	}
	nonce, ct := raw[:crypto.AEADNonceSize], raw[crypto.AEADNonceSize:]
	seed, err := crypto.AEADDecrypt(encryptionKey(m.nodeID), nonce, ct)
	if err != nil {
		return fmt.Errorf("keymanager: decrypt seed file: %w", err)
	}
	pub, priv, err := crypto.PQKeyFromSeed(seed)
	if err != nil {
		return fmt.Errorf("keymanager: derive keypair: %w", err)
	}
	m.pub, m.priv = pub, priv
	return nil
}

// Sign signs data with the node's persistent Dilithium key (spec.md §4.2
// "sign(data) -> 2420 B").
func (m *Manager) Sign(data []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return crypto.PQSign(m.priv, data)
}

// Verify checks sig against the node's own public key (spec.md §4.2
// "verify(data, sig) -> bool").
func (m *Manager) Verify(data, sig []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return crypto.PQVerify(m.pub, data, sig)
}

// Public returns the node's Dilithium public key, for inclusion in
// activation/certificate material.
func (m *Manager) Public() crypto.PQPublicKey {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pub
}

// Private returns the node's Dilithium secret key, for collaborators that
// need to sign full certificates directly (e.g. cert.Manager).
func (m *Manager) Private() *crypto.PQPrivateKey {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.priv
}
