package scanstate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildInitialStateSeedsTimeline(t *testing.T) {
	st := BuildInitialState("scan-1", "https://github.com/o/r", "ghp_abc")
	require.Equal(t, PhaseMasterOrchestrator, st.Phase)
	require.Len(t, st.PhaseTimeline, 1)
	require.Equal(t, "initialized", st.PhaseTimeline[0].Event)
	require.Equal(t, "ghp_abc", st.GitHubToken)
}

func TestMergeRoundTripIsIdentity(t *testing.T) {
	st := BuildInitialState("scan-1", "https://github.com/o/r", "")
	once, err := Merge(st, map[string]any{})
	require.NoError(t, err)
	twice, err := Merge(once, map[string]any{})
	require.NoError(t, err)
	require.Equal(t, st, twice)
}

func TestMergeRejectsSecretShapedKeys(t *testing.T) {
	st := BuildInitialState("scan-1", "https://github.com/o/r", "")
	_, err := Merge(st, map[string]any{"api_key": "sneaky"})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrForbiddenSecretKey))

	_, err = Merge(st, map[string]any{"auth_token": "sneaky"})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrForbiddenSecretKey))
}

func TestMergeAllowsGitHubTokenKey(t *testing.T) {
	st := BuildInitialState("scan-1", "https://github.com/o/r", "")
	next, err := Merge(st, map[string]any{"github_token": "ghp_new"})
	require.NoError(t, err)
	require.Equal(t, "ghp_new", next.GitHubToken)
}

func TestMergeClearsGitHubToken(t *testing.T) {
	st := BuildInitialState("scan-1", "https://github.com/o/r", "ghp_abc")
	next, err := Merge(st, map[string]any{"github_token": ""})
	require.NoError(t, err)
	require.Empty(t, next.GitHubToken)
}

func TestAppendTimelineIsMonotonic(t *testing.T) {
	st := BuildInitialState("scan-1", "https://github.com/o/r", "")
	next := AppendTimeline(st, "validation", "started")
	require.Len(t, next.PhaseTimeline, 2)
	next = AppendTimeline(next, "validation", "completed")
	require.Len(t, next.PhaseTimeline, 3)
	// original snapshot is untouched (copy-on-write).
	require.Len(t, st.PhaseTimeline, 1)
}

func TestMergeDoesNotMutateOriginal(t *testing.T) {
	st := BuildInitialState("scan-1", "https://github.com/o/r", "")
	_, err := Merge(st, map[string]any{"phase": string(PhaseError)})
	require.NoError(t, err)
	require.Equal(t, PhaseMasterOrchestrator, st.Phase)
}
