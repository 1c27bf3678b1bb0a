// Package peer defines the peer layer collaborator interface (spec.md §6
// "Peer layer — broadcast(msg), request(peer, msg) -> msg, ban(node_id,
// duration), penalize(node_id, delta), report_critical(node_id, kind),
// is_genesis(node_id) -> bool") and the wire message types exchanged
// between peers (spec.md §6 "Wire messages").
package peer

import (
	"context"
	"time"

	"github.com/qnet-network/qnet-core/ids"
)

// CriticalKind tags the reason a node is reported as a critical-attack
// offender (spec.md §4.3 "a detected spoof reports the peer as a
// critical-attack offender -> permanent ban").
type CriticalKind int

const (
	CriticalUnknown CriticalKind = iota
	// CriticalCertSpoof is reported when a peer's certificate fails PQ
	// verification in a way consistent with forgery rather than staleness.
	CriticalCertSpoof
	// CriticalDoubleSign is reported when a node signs two conflicting
	// blocks at the same height (spec.md §4.4 "Detected double-sign ->
	// instant ban via peer layer").
	CriticalDoubleSign
)

// Layer is the peer networking collaborator interface consulted by C6, C7,
// and C8 (spec.md §6).
type Layer interface {
	// Broadcast sends msg to all connected peers.
	Broadcast(ctx context.Context, msg Message) error
	// Request sends msg to a specific peer and waits for its response,
	// honoring ctx's deadline (spec.md §5 "each network request carries an
	// explicit deadline").
	Request(ctx context.Context, p ids.NodeID, msg Message) (Message, error)
	// Ban excludes a node from the network for duration.
	Ban(nodeID ids.NodeID, duration time.Duration) error
	// Penalize applies a reputation delta via the peer layer's view of the
	// node (used where the caller does not hold a direct reputation.Ledger
	// reference).
	Penalize(nodeID ids.NodeID, delta float64) error
	// ReportCritical reports an instant-ban offense (spec.md §4.3, §4.4).
	ReportCritical(nodeID ids.NodeID, kind CriticalKind) error
	// IsGenesis reports whether nodeID is one of the network's genesis
	// nodes, exempted from certain bootstrap checks.
	IsGenesis(nodeID ids.NodeID) bool
}

// Message is the common envelope for every wire message type below.
type Message interface {
	messageKind() string
}

// MicroblockAnnounce announces a newly produced or received microblock
// (spec.md §6 "peers with lower tip request missing range").
type MicroblockAnnounce struct {
	BlockBytes []byte
}

func (MicroblockAnnounce) messageKind() string { return "MicroblockAnnounce" }

// MacroblockAnnounce announces a finalized macroblock, self-contained
// because its signature is Full mode (spec.md §6 "full signature; cert
// self-contained").
type MacroblockAnnounce struct {
	BlockBytes []byte
}

func (MacroblockAnnounce) messageKind() string { return "MacroblockAnnounce" }

// CertRequest asks a peer for the certificate matching serial (spec.md §6).
type CertRequest struct {
	Serial string
}

func (CertRequest) messageKind() string { return "CertRequest" }

// CertResponse carries an LZ4-compressed certificate payload (spec.md §6
// "CertResponse{cert_bytes_lz4}").
type CertResponse struct {
	CertBytesLZ4 []byte
}

func (CertResponse) messageKind() string { return "CertResponse" }

// CommitMsg is a macroblock round Phase 1 commit broadcast (spec.md §4.7
// "(node_id, commit, round) signed in full mode").
type CommitMsg struct {
	NodeID ids.NodeID
	Commit [32]byte
	Round  uint64
}

func (CommitMsg) messageKind() string { return "CommitMsg" }

// RevealMsg is a macroblock round Phase 2 reveal broadcast (spec.md §4.7
// "(node_id, value, nonce, round) signed").
type RevealMsg struct {
	NodeID ids.NodeID
	Value  [32]byte
	Nonce  [32]byte
	Round  uint64
}

func (RevealMsg) messageKind() string { return "RevealMsg" }

// SnapshotRequest asks for the state snapshot at or before height (spec.md
// §4.8 "pull state snapshot").
type SnapshotRequest struct {
	Height uint64
}

func (SnapshotRequest) messageKind() string { return "SnapshotRequest" }

// SnapshotChunk carries one piece of a compressed, hash-verified snapshot
// (spec.md §4.8 "compressed, hash-verified").
type SnapshotChunk struct {
	Height   uint64
	Data     []byte
	Hash     [32]byte
	Final    bool
	SeqIndex uint32
}

func (SnapshotChunk) messageKind() string { return "SnapshotChunk" }

// BlockRangeRequest asks for microblocks [from, to] (spec.md §4.8 "download
// block range ... in 100-block chunks").
type BlockRangeRequest struct {
	From uint64
	To   uint64
}

func (BlockRangeRequest) messageKind() string { return "BlockRangeRequest" }

// BlockRangeChunk carries a contiguous range of canonical-byte-serialized
// microblocks.
type BlockRangeChunk struct {
	From  uint64
	To    uint64
	Boxes [][]byte
}

func (BlockRangeChunk) messageKind() string { return "BlockRangeChunk" }
