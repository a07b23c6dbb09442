package execution

import (
	"testing"

	"github.com/SafwanAhmed08/DeplAI/internal/scanstate"
	"github.com/stretchr/testify/require"
)

func TestCoordinatorRunReturnsEmptyOnEmptyPlan(t *testing.T) {
	c := &Coordinator{}
	results := c.Run(nil, nil, nil, "vol")
	require.Empty(t, results)
}

func TestCoordinatorRunReturnsEmptyOnMisalignedPlan(t *testing.T) {
	c := &Coordinator{}
	plan := []scanstate.PlanEntry{{Order: 1, Category: "A03:2021-Injection", Score: 1}}
	results := c.Run(nil, plan, []string{"A05:2021-Security Misconfiguration"}, "vol")
	require.Empty(t, results)
}

func TestAverageConfidenceEmpty(t *testing.T) {
	require.Equal(t, 0.0, averageConfidence(nil))
}

func TestAverageConfidence(t *testing.T) {
	findings := []scanstate.Finding{{Confidence: 0.4}, {Confidence: 0.8}}
	require.InDelta(t, 0.6, averageConfidence(findings), 1e-9)
}

func TestMergePreservesPlanOrderAndIncludesLayer4(t *testing.T) {
	layer4 := []scanstate.Finding{{Title: "layer4"}}
	results := []scanstate.CategoryResult{
		{Category: "B", AggregatedFindings: []scanstate.Finding{{Title: "b"}}},
		{Category: "A", AggregatedFindings: []scanstate.Finding{{Title: "a"}}},
	}
	merged := Merge(layer4, results)
	require.Equal(t, "layer4", merged[0].Title)
	require.Equal(t, "b", merged[1].Title)
	require.Equal(t, "a", merged[2].Title)
}
