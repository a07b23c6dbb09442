package observability

import (
	"testing"
	"time"

	"github.com/SafwanAhmed08/DeplAI/internal/scanstate"
	"github.com/stretchr/testify/require"
)

func ts(d time.Duration) string {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(d).Format(time.RFC3339Nano)
}

func TestPhaseDurationsMatchesStartToEnd(t *testing.T) {
	timeline := []scanstate.TimelineEntry{
		{Phase: "analysis", Event: "started", At: ts(0)},
		{Phase: "analysis", Event: "completed", At: ts(5 * time.Second)},
	}
	durations := PhaseDurations(timeline)
	require.Equal(t, int64(5000), durations["analysis"])
}

func TestRiskProfileScoreAveragesWeights(t *testing.T) {
	findings := []scanstate.UnifiedFinding{{Severity: "critical"}, {Severity: "low"}}
	require.InDelta(t, 0.625, RiskProfileScore(findings), 1e-9)
}

func TestConfidenceScoreWeightsByCategorySize(t *testing.T) {
	results := []scanstate.CategoryResult{
		{CategoryConfidence: 0.9, AggregatedFindings: make([]scanstate.Finding, 3)},
		{CategoryConfidence: 0.3, AggregatedFindings: make([]scanstate.Finding, 1)},
	}
	require.InDelta(t, 0.75, ConfidenceScore(results), 1e-9)
}

func TestNoiseRatioCountsRegexOnly(t *testing.T) {
	raw := []scanstate.RawToolOutput{
		{Tool: "regex_scanner", Findings: make([]scanstate.Finding, 4)},
		{Tool: "ast_scanner", Findings: make([]scanstate.Finding, 10)},
	}
	validated := make([]scanstate.UnifiedFinding, 2)
	require.InDelta(t, 2.0, NoiseRatio(raw, validated), 1e-9)
}

func TestBuildExecutiveSummaryFlagsCritical(t *testing.T) {
	findings := []scanstate.UnifiedFinding{{Category: "A03:2021-Injection", Severity: "critical"}}
	summary := BuildExecutiveSummary(findings, 0.9)
	require.Equal(t, "critical", summary.RiskLevel)
	require.Equal(t, 1, summary.CriticalFindings)
	require.Equal(t, "high", summary.ConfidenceLevel)
}

func TestBuildSecurityPostureDetectsSystemicWeakness(t *testing.T) {
	findings := []scanstate.UnifiedFinding{
		{Category: "A01:2021-Broken Access Control", Severity: "critical"},
		{Category: "A02:2021-Cryptographic Failures", Severity: "critical"},
		{Category: "A03:2021-Injection", Severity: "critical"},
	}
	posture := BuildSecurityPosture(findings, nil)
	require.True(t, posture.SystemicWeaknessDetected)
	require.True(t, posture.RequiresManualReview)
}
