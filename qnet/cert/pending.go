package cert

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/luxfi/log"

	"github.com/qnet-network/qnet-core/ids"
)

// PendingBlock is an opaque handle a caller stashes alongside a ticket while
// its certificate is fetched from peers (spec.md §4.3 step 1 "Miss", §7
// "CertMissing: Queue block in pending-verification bucket with TTL").
type PendingBlock struct {
	Ticket    string
	Serial    string
	Announcer ids.NodeID
	Payload   any
	QueuedAt  time.Time
	Deadline  time.Time
}

// PendingQueue buffers blocks awaiting certificate resolution, bounded by a
// per-entry TTL.
type PendingQueue struct {
	mu      sync.Mutex
	entries map[string]PendingBlock
	ttl     time.Duration
	log     log.Logger
}

// NewPendingQueue builds a queue with the given TTL per entry.
func NewPendingQueue(ttl time.Duration, logger log.Logger) *PendingQueue {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &PendingQueue{
		entries: make(map[string]PendingBlock),
		ttl:     ttl,
		log:     logger,
	}
}

// Enqueue stashes payload under a fresh ticket, keyed by the missing cert
// serial so a later CertResponse can resolve every waiter at once.
func (q *PendingQueue) Enqueue(serial string, announcer ids.NodeID, payload any, now time.Time) string {
	q.mu.Lock()
	defer q.mu.Unlock()
	ticket := uuid.NewString()
	q.entries[ticket] = PendingBlock{
		Ticket:    ticket,
		Serial:    serial,
		Announcer: announcer,
		Payload:   payload,
		QueuedAt:  now,
		Deadline:  now.Add(q.ttl),
	}
	return ticket
}

// ResolveSerial pops every entry waiting on serial, for replay once the
// certificate has been fetched.
func (q *PendingQueue) ResolveSerial(serial string) []PendingBlock {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []PendingBlock
	for ticket, e := range q.entries {
		if e.Serial == serial {
			out = append(out, e)
			delete(q.entries, ticket)
		}
	}
	return out
}

// ExpireOlderThan drops and returns entries whose TTL has elapsed as of now,
// per spec.md §7 "On TTL expiry, drop block and penalize announcer." The
// caller is responsible for applying the penalty via the peer layer.
func (q *PendingQueue) ExpireOlderThan(now time.Time) []PendingBlock {
	q.mu.Lock()
	defer q.mu.Unlock()
	var expired []PendingBlock
	for ticket, e := range q.entries {
		if !now.Before(e.Deadline) {
			expired = append(expired, e)
			delete(q.entries, ticket)
		}
	}
	if len(expired) > 0 {
		q.log.Debug("expired pending-verification entries", "count", len(expired))
	}
	return expired
}

// Len reports the number of entries currently queued.
func (q *PendingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
