package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "scan.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPersistScanResultIsIdempotent(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	result := PersistedResult{
		ScanID:              "scan-1",
		RepoURL:             "https://github.com/acme/widgets",
		FinalPhase:          "cleanup",
		UnifiedFindingsJSON: "[]",
		RiskProfileScore:    0.42,
		CleanupStatus:       "completed",
	}

	require.NoError(t, s.PersistScanResult(ctx, result))
	require.NoError(t, s.PersistScanResult(ctx, result))

	count, err := s.PersistedCount(ctx, "scan-1")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestPersistedCountZeroForUnknownScan(t *testing.T) {
	s := openTemp(t)
	count, err := s.PersistedCount(context.Background(), "missing")
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestAppendAuditRecord(t *testing.T) {
	s := openTemp(t)
	require.NoError(t, s.AppendAuditRecord(context.Background(), "scan-1", `{"scan_id":"scan-1"}`))
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open("")
	require.Error(t, err)
}
