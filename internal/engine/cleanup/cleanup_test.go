package cleanup

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/SafwanAhmed08/DeplAI/internal/scanstate"
	"github.com/SafwanAhmed08/DeplAI/internal/store"
	"github.com/stretchr/testify/require"
)

func TestPersistResultIsIdempotent(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "scan.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	state := scanstate.BuildInitialState("scan-1", "https://github.com/acme/widgets", "")
	state.Phase = scanstate.PhaseCompleted

	first, err := PersistResult(context.Background(), st, state)
	require.NoError(t, err)
	require.True(t, first.PersistenceCompleted)
	require.Equal(t, 1, first.PersistedCount)

	second, err := PersistResult(context.Background(), st, state)
	require.NoError(t, err)
	require.Equal(t, 1, second.PersistedCount)
}

func TestRemoveVolumeNoopOnEmptyName(t *testing.T) {
	require.NoError(t, RemoveVolume(context.Background(), nil, ""))
}
