// Package sync implements fast/normal catch-up (C8): the three global flags
// that suppress producer and commit/reveal duties, snapshot-trigger policy,
// and the chunked block-range download path (spec.md §4.8).
package sync

import "sync/atomic"

// Flags holds the three process-wide booleans spec.md §4.8 names: "Three
// global flags shared across the process: SYNC_IN_PROGRESS,
// FAST_SYNC_IN_PROGRESS, NODE_IS_SYNCHRONIZED. Production and commit/reveal
// participation are suppressed while any of the first two are set or the
// last is false."
type Flags struct {
	syncInProgress     atomic.Bool
	fastSyncInProgress atomic.Bool
	synchronized       atomic.Bool
}

// NewFlags returns Flags with NODE_IS_SYNCHRONIZED false, as a fresh node
// must sync before it may produce or participate (spec.md §4.8, §4.6 step 1).
func NewFlags() *Flags {
	return &Flags{}
}

// Suspended reports whether production and commit/reveal participation must
// be suppressed (spec.md §4.6 "If SYNC_IN_PROGRESS v FAST_SYNC_IN_PROGRESS v
// not NODE_IS_SYNCHRONIZED, suspend production").
func (f *Flags) Suspended() bool {
	return f.syncInProgress.Load() || f.fastSyncInProgress.Load() || !f.synchronized.Load()
}

func (f *Flags) SetSyncInProgress(v bool)     { f.syncInProgress.Store(v) }
func (f *Flags) SetFastSyncInProgress(v bool) { f.fastSyncInProgress.Store(v) }
func (f *Flags) SetSynchronized(v bool)       { f.synchronized.Store(v) }

func (f *Flags) SyncInProgress() bool     { return f.syncInProgress.Load() }
func (f *Flags) FastSyncInProgress() bool { return f.fastSyncInProgress.Load() }
func (f *Flags) Synchronized() bool       { return f.synchronized.Load() }
