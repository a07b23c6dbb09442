package dedup

import (
	"testing"

	"github.com/SafwanAhmed08/DeplAI/internal/scanstate"
	"github.com/stretchr/testify/require"
)

func baseFinding(title, file string, line int, tool string) scanstate.Finding {
	return scanstate.Finding{
		Title:          title,
		FilePath:       file,
		LineNumber:     line,
		Category:       "A03:2021-Injection",
		Severity:       "medium",
		Evidence:       "sql built from user input without parameterization",
		ToolProvenance: tool,
		Confidence:     0.8,
		Reasoning:      "possible injection via string concatenation",
	}
}

func TestRunDedupsExactSignatureDuplicates(t *testing.T) {
	findings := []scanstate.Finding{
		baseFinding("SQL Injection", "app.go", 10, "ast_scanner"),
		baseFinding("SQL Injection", "app.go", 10, "regex_scanner"),
	}
	out := Run("scan-1", findings, nil)
	require.Len(t, out, 1)
	require.ElementsMatch(t, []string{"ast_scanner", "regex_scanner"}, out[0].ToolSources)
}

func TestRunAppliesSeverityBoostForMultipleTools(t *testing.T) {
	findings := []scanstate.Finding{
		baseFinding("SQL Injection", "app.go", 10, "ast_scanner"),
		baseFinding("SQL Injection", "app.go", 10, "regex_scanner"),
	}
	out := Run("scan-1", findings, nil)
	require.Len(t, out, 1)
	// medium(3) + 2 tools(+1) + confidence>=0.75(+1) + boosted category(+1) = 6 -> clamped 5 -> critical
	require.Equal(t, "critical", out[0].Severity)
}

func TestJaccardMergesSimilarDescriptions(t *testing.T) {
	a := map[string]bool{"a": true, "b": true, "c": true}
	b := map[string]bool{"a": true, "b": true, "c": true, "d": true}
	require.InDelta(t, 0.75, jaccard(a, b), 1e-9)
}

func TestRootCauseClassifiesSecretManagement(t *testing.T) {
	f := scanstate.UnifiedFinding{Title: "Hardcoded API token", Description: "found token in source"}
	require.Equal(t, "secret_management", rootCause(f))
}

func TestRootCauseDefaultsToGeneral(t *testing.T) {
	f := scanstate.UnifiedFinding{Title: "Misc finding", Description: "nothing special here"}
	require.Equal(t, "general", rootCause(f))
}

func TestSeverityRankRoundTrip(t *testing.T) {
	require.Equal(t, "critical", rankToSeverity(severityRank("critical")))
	require.Equal(t, "info", rankToSeverity(0))
}
