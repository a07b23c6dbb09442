package correlation

import (
	"testing"

	"github.com/SafwanAhmed08/DeplAI/internal/scanstate"
	"github.com/stretchr/testify/require"
)

func TestBaseScoreSumsSeverityWeights(t *testing.T) {
	mapped := map[string][]scanstate.Finding{
		"A03:2021-Injection": {
			{Severity: "critical"},
			{Severity: "low"},
		},
	}
	scores := BaseScore(mapped)
	require.InDelta(t, 1.25, scores["A03:2021-Injection"], 1e-9)
}

func TestCorrelatedScoreAppliesRelationshipTable(t *testing.T) {
	base := map[string]float64{
		"A03:2021-Injection":                 1.0,
		"A05:2021-Security Misconfiguration": 0.0,
	}
	correlated := CorrelatedScore(base)
	require.InDelta(t, 0.2, correlated["A05:2021-Security Misconfiguration"], 1e-9)
}

func TestSelectSpawnCategoriesDropsZeroScores(t *testing.T) {
	correlated := map[string]float64{
		"A03:2021-Injection": 1.0,
		"A09:2021-Security Logging and Monitoring Failures": 0,
	}
	selected := SelectSpawnCategories(correlated)
	require.Equal(t, []string{"A03:2021-Injection"}, selected)
}

func TestFilterByTechStackDropsA06WithoutManifests(t *testing.T) {
	selected := []string{"A03:2021-Injection", "A06:2021-Vulnerable and Outdated Components"}
	filtered := FilterByTechStack(selected, false)
	require.Equal(t, []string{"A03:2021-Injection"}, filtered)
}

func TestBuildExecutionPlanOrdersSequentially(t *testing.T) {
	plan := BuildExecutionPlan([]string{"A03:2021-Injection", "A05:2021-Security Misconfiguration"},
		map[string]float64{"A03:2021-Injection": 1.0, "A05:2021-Security Misconfiguration": 0.2})
	require.Equal(t, 1, plan[0].Order)
	require.Equal(t, 2, plan[1].Order)
}
