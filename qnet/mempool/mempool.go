// Package mempool defines the mempool collaborator interface (spec.md §6
// "drain_best(n, nonce_oracle) -> list<Transaction>; evict(tx_hash);
// admit(tx)") and a reference in-memory implementation.
//
// Grounded on the gas-price max-heap pattern of
// wyf-ACCEPT-eth2030/pkg/txpool/price_heap.go, adapted from a pending/queued
// split keyed by base-fee effective price to a single pending pool ordered
// by gas_price desc, nonce asc per sender (spec.md §4.6 step 3).
package mempool

import (
	"container/heap"
	"sync"

	"github.com/qnet-network/qnet-core/ids"
	"github.com/qnet-network/qnet-core/qnet/types"
)

// NonceOracle reports the next expected nonce for a sender, so DrainBest can
// skip transactions that would be invalid against current state (spec.md §6
// "drain_best(n, nonce_oracle)").
type NonceOracle interface {
	ExpectedNonce(sender string) uint64
}

// Mempool is the microblock producer's transaction source (spec.md §6
// Collaborator interfaces).
type Mempool interface {
	// Admit adds a transaction to the pool. Callers must have already
	// verified its signature; Admit does not re-check it.
	Admit(tx *types.Transaction) error
	// DrainBest returns up to n transactions ordered by gas_price desc, then
	// nonce asc per sender (spec.md §4.6 step 3), skipping entries whose
	// nonce does not match nonceOracle's expectation. Drained transactions
	// remain in the pool until Evict is called explicitly (spec.md §5
	// "Mempool draining happens under a snapshot ... evicts confirmed txs
	// after broadcast").
	DrainBest(n int, oracle NonceOracle) []*types.Transaction
	// Evict removes a transaction by hash, e.g. because it failed
	// validation (spec.md §4.6 step 4) or was included in an appended block
	// (spec.md §4.6 step 6).
	Evict(hash ids.ID)
	// Len reports the number of transactions currently held.
	Len() int
}

type entry struct {
	tx    *types.Transaction
	index int
}

// byPriority is a max-heap ordered by gas_price desc, then nonce asc
// (spec.md §4.6 step 3), so the heap root is always the next best
// transaction to drain regardless of which sender it belongs to.
type byPriority []*entry

func (h byPriority) Len() int { return len(h) }

func (h byPriority) Less(i, j int) bool {
	if h[i].tx.GasPrice != h[j].tx.GasPrice {
		return h[i].tx.GasPrice > h[j].tx.GasPrice
	}
	return h[i].tx.Nonce < h[j].tx.Nonce
}

func (h byPriority) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *byPriority) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *byPriority) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Pool is the reference in-memory Mempool implementation.
type Pool struct {
	mu      sync.Mutex
	byHash  map[ids.ID]*entry
	heap    byPriority
	maxSize int
}

// NewPool creates an empty Pool. maxSize bounds total held transactions;
// Admit rejects new entries once full.
func NewPool(maxSize int) *Pool {
	p := &Pool{
		byHash:  make(map[ids.ID]*entry),
		maxSize: maxSize,
	}
	heap.Init(&p.heap)
	return p
}

// Admit adds tx to the pool (spec.md §6 "admit(tx)").
func (p *Pool) Admit(tx *types.Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.byHash[tx.Hash]; exists {
		return nil
	}
	if p.maxSize > 0 && len(p.byHash) >= p.maxSize {
		return ErrPoolFull
	}

	e := &entry{tx: tx}
	p.byHash[tx.Hash] = e
	heap.Push(&p.heap, e)
	return nil
}

// DrainBest returns up to n transactions in priority order, skipping ones
// whose nonce does not match the oracle's expectation for their sender
// (spec.md §4.6 step 3-4). Neither drained nor skipped transactions leave the
// pool: callers remove them with Evict once they are included in an appended
// block or found invalid.
func (p *Pool) DrainBest(n int, oracle NonceOracle) []*types.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []*types.Transaction
	var popped []*entry

	for len(out) < n && p.heap.Len() > 0 {
		e := heap.Pop(&p.heap).(*entry)
		popped = append(popped, e)
		if oracle != nil && e.tx.Nonce != oracle.ExpectedNonce(e.tx.From) {
			continue
		}
		out = append(out, e.tx)
	}

	for _, e := range popped {
		heap.Push(&p.heap, e)
	}
	return out
}

// Evict removes a transaction by hash (spec.md §6 "evict(tx_hash)").
func (p *Pool) Evict(hash ids.ID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.byHash[hash]
	if !ok {
		return
	}
	delete(p.byHash, hash)
	if e.index >= 0 && e.index < p.heap.Len() && p.heap[e.index] == e {
		heap.Remove(&p.heap, e.index)
	}
}

// Len reports the number of held transactions.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byHash)
}
