package sync

import (
	"encoding/binary"
	"sort"

	"github.com/qnet-network/qnet-core/qnet/config"
	"github.com/qnet-network/qnet-core/qnet/storage"
)

// Kind distinguishes a full snapshot from an incremental one (spec.md §4.8
// "Snapshot policy").
type Kind int

const (
	Full Kind = iota
	Incremental
)

func (k Kind) prefix() string {
	if k == Full {
		return "snapshot/full/"
	}
	return "snapshot/incr/"
}

// DueSnapshot reports which snapshot kind, if any, height triggers: a full
// snapshot takes priority when both intervals land on the same height
// (spec.md §4.8 "Full snapshot every 10,000 blocks; incremental every 1,000
// blocks").
func DueSnapshot(height uint64, params config.Parameters) (Kind, bool) {
	if params.SnapshotIntervalFull > 0 && height%params.SnapshotIntervalFull == 0 {
		return Full, true
	}
	if params.SnapshotIntervalIncr > 0 && height%params.SnapshotIntervalIncr == 0 {
		return Incremental, true
	}
	return 0, false
}

// Index persists which heights have a recorded snapshot of each kind,
// pruning all but the most recent SnapshotsRetained of each (spec.md §4.8
// "retain the latest 5 of each").
type Index struct {
	store  storage.Store
	params config.Parameters
}

// NewIndex builds an Index over store.
func NewIndex(store storage.Store, params config.Parameters) *Index {
	return &Index{store: store, params: params}
}

// Record persists hash as the snapshot taken at height for kind, pruning any
// entries beyond the retention window.
func (idx *Index) Record(kind Kind, height uint64, hash [32]byte) error {
	heights, err := idx.heights(kind)
	if err != nil {
		return err
	}
	heights = append(heights, height)
	sort.Slice(heights, func(i, j int) bool { return heights[i] < heights[j] })

	var toPrune []uint64
	if len(heights) > idx.params.SnapshotsRetained {
		toPrune = heights[:len(heights)-idx.params.SnapshotsRetained]
	}

	return idx.store.Batch(func(b storage.Batch) error {
		if err := b.Put(snapshotKey(kind, height), hash[:]); err != nil {
			return err
		}
		for _, h := range toPrune {
			if err := b.Delete(snapshotKey(kind, h)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Latest returns the most recently recorded height and hash of kind.
func (idx *Index) Latest(kind Kind) (height uint64, hash [32]byte, ok bool, err error) {
	heights, err := idx.heights(kind)
	if err != nil || len(heights) == 0 {
		return 0, [32]byte{}, false, err
	}
	sort.Slice(heights, func(i, j int) bool { return heights[i] < heights[j] })
	last := heights[len(heights)-1]
	raw, err := idx.store.Get(snapshotKey(kind, last))
	if err != nil {
		return 0, [32]byte{}, false, err
	}
	var h [32]byte
	copy(h[:], raw)
	return last, h, true, nil
}

func (idx *Index) heights(kind Kind) ([]uint64, error) {
	prefix := []byte(kind.prefix())
	var out []uint64
	err := idx.store.IterRange(prefix, func(key, _ []byte) error {
		out = append(out, binary.BigEndian.Uint64(key[len(prefix):]))
		return nil
	})
	return out, err
}

func snapshotKey(kind Kind, height uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], height)
	return append([]byte(kind.prefix()), b[:]...)
}
