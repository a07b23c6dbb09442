package hitl

import (
	"testing"

	"github.com/SafwanAhmed08/DeplAI/internal/scanstate"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDecisionAcceptsKnownVerdicts(t *testing.T) {
	d, ok := NormalizeDecision("  Approve ")
	require.True(t, ok)
	require.Equal(t, "approve", d)
}

func TestNormalizeDecisionRejectsUnknown(t *testing.T) {
	_, ok := NormalizeDecision("maybe")
	require.False(t, ok)
}

func TestResolveTimeoutSecondsPrefersConfig(t *testing.T) {
	require.Equal(t, 30, ResolveTimeoutSeconds(30, "90", 120))
}

func TestResolveTimeoutSecondsFallsBackToEnv(t *testing.T) {
	require.Equal(t, 90, ResolveTimeoutSeconds(0, "90", 120))
}

func TestResolveTimeoutSecondsFallsBackToDefault(t *testing.T) {
	require.Equal(t, DefaultTimeoutSeconds, ResolveTimeoutSeconds(0, "", 0))
}

func TestResolveDefaultDecisionFallsBackToReject(t *testing.T) {
	require.Equal(t, "reject", ResolveDefaultDecision("", "", ""))
}

func TestResolveOutcomeUsesExplicitDecision(t *testing.T) {
	outcome := ResolveOutcome("approve", false, "reject")
	require.Equal(t, "approve", outcome.Decision)
	require.False(t, outcome.TimedOut)
}

func TestResolveOutcomeFallsBackOnTimeout(t *testing.T) {
	outcome := ResolveOutcome("", true, "reject")
	require.Equal(t, "reject", outcome.Decision)
	require.True(t, outcome.TimedOut)
}

func TestApplyDecisionSkipsDownstreamOnReject(t *testing.T) {
	updates := ApplyDecision(Outcome{Decision: "reject"})
	require.Equal(t, scanstate.StageSkipped, updates["analysis_phase"])
	require.Equal(t, scanstate.StageSkipped, updates["execution_phase"])
}

func TestApplyDecisionLeavesAnalysisUntouchedOnApprove(t *testing.T) {
	updates := ApplyDecision(Outcome{Decision: "approve"})
	_, present := updates["analysis_phase"]
	require.False(t, present)
}
