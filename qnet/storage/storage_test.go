package storage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

var errAlways = errors.New("boom")

func TestMemStorePutGet(t *testing.T) {
	s := NewMemStore()
	require.NoError(t, s.Put([]byte("a"), []byte("1")))

	v, err := s.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), v)

	_, err = s.Get([]byte("missing"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemStoreIterRangeOrdered(t *testing.T) {
	s := NewMemStore()
	require.NoError(t, s.Put([]byte("block/2"), []byte("b")))
	require.NoError(t, s.Put([]byte("block/1"), []byte("a")))
	require.NoError(t, s.Put([]byte("other/1"), []byte("z")))

	var keys []string
	err := s.IterRange([]byte("block/"), func(k, v []byte) error {
		keys = append(keys, string(k))
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"block/1", "block/2"}, keys)
}

func TestMemStoreBatchAtomic(t *testing.T) {
	s := NewMemStore()
	require.NoError(t, s.Put([]byte("x"), []byte("old")))

	err := s.Batch(func(b Batch) error {
		require.NoError(t, b.Put([]byte("x"), []byte("new")))
		require.NoError(t, b.Put([]byte("y"), []byte("fresh")))
		return nil
	})
	require.NoError(t, err)

	v, err := s.Get([]byte("x"))
	require.NoError(t, err)
	require.Equal(t, []byte("new"), v)

	v, err = s.Get([]byte("y"))
	require.NoError(t, err)
	require.Equal(t, []byte("fresh"), v)
}

func TestMemStoreBatchRollsBackOnError(t *testing.T) {
	s := NewMemStore()

	err := s.Batch(func(b Batch) error {
		require.NoError(t, b.Put([]byte("x"), []byte("new")))
		return errAlways
	})
	require.ErrorIs(t, err, errAlways)

	_, err = s.Get([]byte("x"))
	require.ErrorIs(t, err, ErrNotFound)
}
