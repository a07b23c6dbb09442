// Package observability computes the non-blocking Observability / Strategic
// Summary: phase durations, per-tool stats, risk/confidence rollups, the
// audit record, and export renderers.
package observability

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/SafwanAhmed08/DeplAI/internal/scanstate"
)

var startEvents = map[string]bool{"started": true, "running": true, "initialized": true}
var endEvents = map[string]bool{"completed": true, "failed": true, "skipped": true}

// PhaseDurations matches a phase's earliest start event to its earliest
// subsequent end event and reports the delta in milliseconds.
func PhaseDurations(timeline []scanstate.TimelineEntry) map[string]int64 {
	starts := map[string]time.Time{}
	durations := map[string]int64{}

	for _, entry := range timeline {
		at, err := time.Parse(time.RFC3339Nano, entry.At)
		if err != nil {
			continue
		}
		if startEvents[entry.Event] {
			if _, seen := starts[entry.Phase]; !seen {
				starts[entry.Phase] = at
			}
			continue
		}
		if endEvents[entry.Event] {
			if start, ok := starts[entry.Phase]; ok {
				if _, already := durations[entry.Phase]; !already {
					durations[entry.Phase] = at.Sub(start).Milliseconds()
				}
			}
		}
	}
	return durations
}

// ToolRuntimeStats aggregates per-tool execution stats across every
// category's execution records.
type ToolRuntimeStats struct {
	InvocationCount int
	TotalTimeMS     int64
	FailureCount    int
}

func ToolRuntimeStatsByName(results []scanstate.CategoryResult) map[string]ToolRuntimeStats {
	stats := map[string]ToolRuntimeStats{}
	for _, cat := range results {
		for _, rec := range cat.ExecutionRecord {
			s := stats[rec.ToolName]
			s.InvocationCount++
			s.TotalTimeMS += rec.ExecutionTimeMS
			if rec.Status != "completed" {
				s.FailureCount++
			}
			stats[rec.ToolName] = s
		}
	}
	return stats
}

// severityWeight mirrors layer10's risk-profile weighting, which is
// deliberately distinct from the Correlation Subgraph's base-scorer weights.
var severityWeight = map[string]float64{
	"critical": 1.0,
	"high":     0.85,
	"medium":   0.55,
	"low":      0.25,
}

// RiskProfileScore is the average severity-weight of intelligent_findings.
func RiskProfileScore(findings []scanstate.UnifiedFinding) float64 {
	if len(findings) == 0 {
		return 0
	}
	var total float64
	for _, f := range findings {
		weight, ok := severityWeight[strings.ToLower(f.Severity)]
		if !ok {
			weight = 0.1
		}
		total += weight
	}
	return total / float64(len(findings))
}

// ConfidenceScore is a category-size-weighted mean of per-category
// confidence.
func ConfidenceScore(results []scanstate.CategoryResult) float64 {
	var weightedSum float64
	var totalSize int
	for _, cat := range results {
		size := len(cat.AggregatedFindings)
		weightedSum += cat.CategoryConfidence * float64(size)
		totalSize += size
	}
	if totalSize == 0 {
		return 0
	}
	return weightedSum / float64(totalSize)
}

// NoiseRatio is regex-scanner raw finding count divided by validated
// (intelligent) finding count.
func NoiseRatio(rawOutputs []scanstate.RawToolOutput, validated []scanstate.UnifiedFinding) float64 {
	if len(validated) == 0 {
		return 0
	}
	var regexCount int
	for _, out := range rawOutputs {
		if out.Tool == "regex_scanner" {
			regexCount += len(out.Findings)
		}
	}
	return float64(regexCount) / float64(len(validated))
}

// ExecutiveSummary is the risk-facing rollup surfaced to callers.
type ExecutiveSummary struct {
	RiskLevel              string   `json:"risk_level"`
	TotalFindings          int      `json:"total_findings"`
	CriticalFindings       int      `json:"critical_findings"`
	OwaspCategories        []string `json:"owasp_categories"`
	PrimaryRiskArea        string   `json:"primary_risk_area"`
	ConfidenceLevel        string   `json:"confidence_level"`
	RecommendedNextAction  string   `json:"recommended_next_action"`
}

func BuildExecutiveSummary(findings []scanstate.UnifiedFinding, confidence float64) ExecutiveSummary {
	categoryCounts := map[string]int{}
	var critical int
	for _, f := range findings {
		categoryCounts[f.Category]++
		if strings.ToLower(f.Severity) == "critical" {
			critical++
		}
	}

	categories := make([]string, 0, len(categoryCounts))
	for c := range categoryCounts {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	primary := ""
	maxCount := -1
	for _, c := range categories {
		if categoryCounts[c] > maxCount {
			maxCount = categoryCounts[c]
			primary = c
		}
	}

	riskLevel := "low"
	switch {
	case critical > 0:
		riskLevel = "critical"
	case len(findings) > 10:
		riskLevel = "high"
	case len(findings) > 0:
		riskLevel = "medium"
	}

	confidenceLevel := "low"
	switch {
	case confidence >= 0.8:
		confidenceLevel = "high"
	case confidence >= 0.5:
		confidenceLevel = "medium"
	}

	action := "monitor"
	if riskLevel == "critical" || riskLevel == "high" {
		action = "remediate_before_deploy"
	}

	return ExecutiveSummary{
		RiskLevel:             riskLevel,
		TotalFindings:         len(findings),
		CriticalFindings:      critical,
		OwaspCategories:       categories,
		PrimaryRiskArea:       primary,
		ConfidenceLevel:       confidenceLevel,
		RecommendedNextAction: action,
	}
}

// SecurityPosture is the systemic-risk rollup.
type SecurityPosture struct {
	AttackSurfaceVector      []string           `json:"attack_surface_vector"`
	RiskDistribution         map[string]int     `json:"risk_distribution"`
	CategoryConfidenceMap    map[string]float64 `json:"category_confidence_map"`
	SystemicWeaknessDetected bool               `json:"systemic_weakness_detected"`
	RequiresManualReview     bool               `json:"requires_manual_review"`
}

func BuildSecurityPosture(findings []scanstate.UnifiedFinding, results []scanstate.CategoryResult) SecurityPosture {
	distribution := map[string]int{}
	surfaceSet := map[string]bool{}
	for _, f := range findings {
		distribution[strings.ToLower(f.Severity)]++
		surfaceSet[f.Category] = true
	}
	surface := make([]string, 0, len(surfaceSet))
	for c := range surfaceSet {
		surface = append(surface, c)
	}
	sort.Strings(surface)

	confidenceMap := map[string]float64{}
	for _, cat := range results {
		confidenceMap[cat.Category] = cat.CategoryConfidence
	}

	systemic := distribution["critical"] >= 3 || len(surface) >= 4
	manualReview := distribution["critical"] > 0 || systemic

	return SecurityPosture{
		AttackSurfaceVector:      surface,
		RiskDistribution:         distribution,
		CategoryConfidenceMap:    confidenceMap,
		SystemicWeaknessDetected: systemic,
		RequiresManualReview:     manualReview,
	}
}

// BuildAuditRecord assembles the terminal audit record persisted alongside
// the scan result.
func BuildAuditRecord(state scanstate.ScanState, summary ExecutiveSummary, posture SecurityPosture, risk, confidence float64) map[string]any {
	return map[string]any{
		"scan_id":           state.ScanID,
		"repo_url":          state.RepoURL,
		"phase":             string(state.Phase),
		"risk_profile_score": risk,
		"confidence_score":  confidence,
		"executive_summary": summary,
		"security_posture":  posture,
		"finding_count":     len(state.IntelligentFindings),
	}
}

// RenderMarkdown produces the markdown export of the executive summary.
func RenderMarkdown(summary ExecutiveSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Security Scan Summary\n\n")
	fmt.Fprintf(&b, "- Risk level: **%s**\n", summary.RiskLevel)
	fmt.Fprintf(&b, "- Total findings: %d (critical: %d)\n", summary.TotalFindings, summary.CriticalFindings)
	fmt.Fprintf(&b, "- Primary risk area: %s\n", summary.PrimaryRiskArea)
	fmt.Fprintf(&b, "- Confidence: %s\n", summary.ConfidenceLevel)
	fmt.Fprintf(&b, "- Recommended next action: %s\n", summary.RecommendedNextAction)
	return b.String()
}

// RenderJSON produces the structured JSON export.
func RenderJSON(record map[string]any) (string, error) {
	out, err := json.Marshal(record)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// RenderCompactBlob produces a single-line key=value summary for log lines
// and chat notifications.
func RenderCompactBlob(summary ExecutiveSummary) string {
	return fmt.Sprintf("risk=%s findings=%d critical=%d confidence=%s action=%s",
		summary.RiskLevel, summary.TotalFindings, summary.CriticalFindings, summary.ConfidenceLevel, summary.RecommendedNextAction)
}
