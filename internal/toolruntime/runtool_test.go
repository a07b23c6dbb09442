package toolruntime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLastJSONLineTakesFinalLine(t *testing.T) {
	stdout := "some progress noise\n{\"findings\": [{\"title\": \"t\", \"evidence\": \"e\"}]}\n"
	env, ok := parseLastJSONLine(stdout)
	require.True(t, ok)
	require.Len(t, env.Findings, 1)
	require.Equal(t, "t", env.Findings[0].Title)
}

func TestParseLastJSONLineRejectsMissingFindingsKey(t *testing.T) {
	_, ok := parseLastJSONLine(`{"summary": {}}`)
	require.False(t, ok)
}

func TestParseLastJSONLineRejectsGarbage(t *testing.T) {
	_, ok := parseLastJSONLine("not json at all")
	require.False(t, ok)
}

func TestNormalizeFindingInfersCategoryAndSeverity(t *testing.T) {
	spec := Catalog["dependency_scanner"]
	f := normalizeFinding("dependency_scanner", spec, RawFinding{Title: "t", Evidence: "e"})
	require.Equal(t, spec.Category, f.Category)
	require.Equal(t, spec.DefaultSeverity, f.Severity)
	require.Equal(t, defaultConfidence, f.Confidence)
	require.Equal(t, "strict_json", f.OriginParser)
}

func TestNormalizeFindingKeepsExplicitValues(t *testing.T) {
	spec := Catalog["dependency_scanner"]
	f := normalizeFinding("dependency_scanner", spec, RawFinding{
		Title: "t", Evidence: "e", Category: "A01:2021-Broken Access Control",
		Severity: "CRITICAL", Confidence: 0.9,
	})
	require.Equal(t, "A01:2021-Broken Access Control", f.Category)
	require.Equal(t, "critical", f.Severity)
	require.Equal(t, 0.9, f.Confidence)
}

func TestToolsForCategoryOrdersByWeightDescending(t *testing.T) {
	tools := ToolsForCategory("A01:2021-Broken Access Control")
	require.Equal(t, []string{"ast_scanner", "config_scanner"}, tools)
}

func TestToolsForCategoryDefaultsToGeneric(t *testing.T) {
	tools := ToolsForCategory("unknown-category")
	require.Equal(t, []string{"generic_pattern_scan"}, tools)
}
