package sync

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFlagsSuspendedUntilSynchronized(t *testing.T) {
	f := NewFlags()
	require.True(t, f.Suspended())

	f.SetSynchronized(true)
	require.False(t, f.Suspended())

	f.SetFastSyncInProgress(true)
	require.True(t, f.Suspended())
	f.SetFastSyncInProgress(false)

	f.SetSyncInProgress(true)
	require.True(t, f.Suspended())
}
