// Package cleanup implements the Cleanup Subgraph: idempotent result
// persistence followed by best-effort workspace volume removal.
package cleanup

import (
	"context"
	"encoding/json"

	"github.com/SafwanAhmed08/DeplAI/internal/sandbox"
	"github.com/SafwanAhmed08/DeplAI/internal/scanstate"
	"github.com/SafwanAhmed08/DeplAI/internal/store"
)

// PersistResult runs the Result Persister: idempotent write keyed by
// scan_id. On any failure it returns the error without aborting the rest of
// cleanup — the caller is expected to append it to state.errors and continue.
func PersistResult(ctx context.Context, st *store.Store, state scanstate.ScanState) (scanstate.CleanupStatus, error) {
	findingsJSON, err := json.Marshal(state.IntelligentFindings)
	if err != nil {
		return scanstate.CleanupStatus{}, err
	}

	if err := st.PersistScanResult(ctx, store.PersistedResult{
		ScanID:              state.ScanID,
		RepoURL:             state.RepoURL,
		FinalPhase:          string(state.Phase),
		UnifiedFindingsJSON: string(findingsJSON),
		RiskProfileScore:    0,
		CleanupStatus:       "persisted",
	}); err != nil {
		return scanstate.CleanupStatus{}, err
	}

	count, err := st.PersistedCount(ctx, state.ScanID)
	if err != nil {
		return scanstate.CleanupStatus{}, err
	}

	return scanstate.CleanupStatus{
		PersistenceCompleted: true,
		PersistedCount:       count,
	}, nil
}

// RemoveVolume removes the named workspace volume; the sandbox client
// already treats "not found" as success.
func RemoveVolume(ctx context.Context, client *sandbox.Client, volumeName string) error {
	if volumeName == "" {
		return nil
	}
	return client.RemoveVolume(ctx, volumeName)
}
