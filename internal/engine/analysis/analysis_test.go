package analysis

import (
	"testing"

	"github.com/SafwanAhmed08/DeplAI/internal/scanstate"
	"github.com/stretchr/testify/require"
)

func TestBuildPlanDetectsSignals(t *testing.T) {
	plan := BuildPlan([]string{"src/main.go", "go.mod", "config.yaml"})
	require.True(t, plan.HasSourceFiles)
	require.True(t, plan.HasDependencyManifests)
	require.True(t, plan.HasConfigFiles)
}

func TestBuildPlanAllFalseOnEmpty(t *testing.T) {
	plan := BuildPlan(nil)
	require.False(t, plan.HasSourceFiles)
	require.False(t, plan.HasDependencyManifests)
	require.False(t, plan.HasConfigFiles)
}

func TestAggregateDedupsByScannerTypeFileLine(t *testing.T) {
	raw := []scanstate.RawToolOutput{
		{Tool: "ast_scanner", Findings: []scanstate.Finding{
			{Scanner: "ast_scanner", Type: "injection", FilePath: "app.go", LineNumber: 10},
			{Scanner: "ast_scanner", Type: "injection", FilePath: "app.go", LineNumber: 10},
		}},
	}
	findings := Aggregate("scan-1", raw)
	require.Len(t, findings, 1)
	require.Equal(t, "scan-1-ast_scanner-0", findings[0].ID)
}

func TestReflectListsMissingScanners(t *testing.T) {
	raw := []scanstate.RawToolOutput{
		{Tool: "ast_scanner", Findings: []scanstate.Finding{{Scanner: "ast_scanner"}}},
	}
	gaps := Reflect(raw, false)
	require.ElementsMatch(t, []string{"regex_scanner", "dependency_scanner", "config_scanner"}, gaps)
}

func TestReflectForcesEmptyAfterRescan(t *testing.T) {
	gaps := Reflect(nil, true)
	require.Empty(t, gaps)
}

func TestIsConcreteFindingRequiresEvidenceAndCategory(t *testing.T) {
	require.True(t, isConcreteFinding(scanstate.Finding{Evidence: "app.go:42", Category: "A03:2021-Injection"}))
	require.False(t, isConcreteFinding(scanstate.Finding{Evidence: "no location here", Category: "A03:2021-Injection"}))
	require.False(t, isConcreteFinding(scanstate.Finding{Evidence: "app.go:42", Category: ""}))
}

func TestMapToCategoriesDefaultsUnknownHints(t *testing.T) {
	mapped := MapToCategories([]scanstate.Finding{{Category: "not-a-real-category"}})
	require.Len(t, mapped[defaultCategory], 1)
}
