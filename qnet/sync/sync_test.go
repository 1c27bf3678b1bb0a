package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/qnet-network/qnet-core/ids"
	"github.com/qnet-network/qnet-core/qnet/chain"
	"github.com/qnet-network/qnet-core/qnet/config"
	"github.com/qnet-network/qnet-core/qnet/crypto"
	"github.com/qnet-network/qnet-core/qnet/peer"
	"github.com/qnet-network/qnet-core/qnet/storage"
	"github.com/qnet-network/qnet-core/qnet/types"
)

type fakeApplier struct{ root ids.ID }

func (f *fakeApplier) ApplySnapshot([]byte) (ids.ID, error) { return f.root, nil }

func chainedRange(seedHeight uint64, from, to uint64) [][]byte {
	prev := &types.Block{Height: seedHeight, PohCount: seedHeight}
	var boxes [][]byte
	for h := from; h <= to; h++ {
		blk := &types.Block{
			Height:       h,
			Timestamp:    time.Unix(1700000000+int64(h), 0).UTC(),
			Producer:     "node-1",
			PreviousHash: types.PreviousHashOf(prev),
			PohCount:     h,
		}
		boxes = append(boxes, blk.CanonicalBytes())
		prev = blk
	}
	return boxes
}

func TestShouldFastSyncAtTrigger(t *testing.T) {
	params := config.DefaultParams()
	f := NewFlags()
	s := New(f, peer.NewFake(), nil, nil, params, nil, nil)

	require.False(t, s.ShouldFastSync(100, 140))
	require.True(t, s.ShouldFastSync(100, 150))
}

func TestRunFastSyncAppliesSnapshotThenDownloadsRangeAndSynchronizes(t *testing.T) {
	params := config.LocalParams()

	ch, err := chain.New(storage.NewMemStore(), nil)
	require.NoError(t, err)
	idx := NewIndex(storage.NewMemStore(), params)
	flags := NewFlags()

	fake := peer.NewFake()
	fake.RequestFn = func(ctx context.Context, p ids.NodeID, msg peer.Message) (peer.Message, error) {
		switch m := msg.(type) {
		case peer.SnapshotRequest:
			data := []byte("snapshot-at-200")
			return peer.SnapshotChunk{Height: 200, Data: data, Hash: crypto.HSecure(data), Final: true}, nil
		case peer.BlockRangeRequest:
			return peer.BlockRangeChunk{From: m.From, To: m.To, Boxes: chainedRange(200, m.From, m.To)}, nil
		default:
			return nil, peer.ErrNoResponse
		}
	}

	s := New(flags, fake, ch, idx, params, nil, nil)
	applier := &fakeApplier{root: ids.ID{9}}

	require.True(t, s.ShouldFastSync(0, 250))
	require.NoError(t, s.RunFastSync(context.Background(), []ids.NodeID{"peer-1"}, 250, applier))

	require.True(t, flags.Synchronized())
	require.False(t, flags.FastSyncInProgress())
	require.Equal(t, uint64(250), ch.Tip().Height)

	height, _, ok, err := idx.Latest(Full)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(200), height)
}

func TestRunFastSyncRejectsSnapshotHashMismatch(t *testing.T) {
	params := config.LocalParams()
	ch, err := chain.New(storage.NewMemStore(), nil)
	require.NoError(t, err)
	idx := NewIndex(storage.NewMemStore(), params)
	flags := NewFlags()

	fake := peer.NewFake()
	fake.RequestFn = func(ctx context.Context, p ids.NodeID, msg peer.Message) (peer.Message, error) {
		return peer.SnapshotChunk{Height: 200, Data: []byte("a"), Hash: [32]byte{0xff}}, nil
	}

	s := New(flags, fake, ch, idx, params, nil, nil)
	err = s.RunFastSync(context.Background(), nil, 250, &fakeApplier{})
	require.ErrorIs(t, err, ErrSnapshotHashMismatch)
	require.False(t, flags.Synchronized())
}

func TestRunNormalSyncDownloadsAndAppendsSequentially(t *testing.T) {
	params := config.LocalParams()
	ch, err := chain.New(storage.NewMemStore(), nil)
	require.NoError(t, err)
	require.NoError(t, ch.Append(&types.Block{Height: 0}))
	flags := NewFlags()

	fake := peer.NewFake()
	fake.RequestFn = func(ctx context.Context, p ids.NodeID, msg peer.Message) (peer.Message, error) {
		m := msg.(peer.BlockRangeRequest)
		return peer.BlockRangeChunk{From: m.From, To: m.To, Boxes: chainedRange(0, m.From, m.To)}, nil
	}

	s := New(flags, fake, ch, nil, params, nil, nil)
	require.NoError(t, s.RunNormalSync(context.Background(), "peer-1", 1, 50))
	require.Equal(t, uint64(50), ch.Tip().Height)
	require.False(t, flags.SyncInProgress())
}
