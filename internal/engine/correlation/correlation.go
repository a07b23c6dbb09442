// Package correlation implements the Correlation Subgraph: base scoring,
// relationship adjustment, spawn selection, stack filtering, and execution
// planning, grounded on this codebase's severity-rank scoring idiom.
package correlation

import (
	"math"
	"sort"

	"github.com/SafwanAhmed08/DeplAI/internal/scanstate"
)

// SeverityWeight mirrors the Base Scorer's fixed per-severity weights.
var SeverityWeight = map[string]float64{
	"critical": 1.0,
	"high":     0.75,
	"medium":   0.5,
	"low":      0.25,
	"info":     0.1,
}

// BaseScore sums per-finding severity weights per category. A severity not
// present in SeverityWeight defaults to 0.25.
func BaseScore(owaspMapped map[string][]scanstate.Finding) map[string]float64 {
	scores := make(map[string]float64, len(owaspMapped))
	for category, findings := range owaspMapped {
		var total float64
		for _, f := range findings {
			w, ok := SeverityWeight[f.Severity]
			if !ok {
				w = 0.25
			}
			total += w
		}
		scores[category] = round4(total)
	}
	return scores
}

// relationshipEdge is one fixed source->target correlation weight.
type relationshipEdge struct {
	target string
	weight float64
}

// RelationshipTable is the fixed category correlation table; a source
// category contributes `weight` * its own base score to each target.
var RelationshipTable = map[string][]relationshipEdge{
	"A01:2021-Broken Access Control": {
		{target: "A05:2021-Security Misconfiguration", weight: 0.15},
	},
	"A02:2021-Cryptographic Failures": {
		{target: "A05:2021-Security Misconfiguration", weight: 0.1},
	},
	"A03:2021-Injection": {
		{target: "A05:2021-Security Misconfiguration", weight: 0.2},
	},
	"A05:2021-Security Misconfiguration": {
		{target: "A01:2021-Broken Access Control", weight: 0.1},
		{target: "A03:2021-Injection", weight: 0.1},
	},
	"A06:2021-Vulnerable and Outdated Components": {
		{target: "A05:2021-Security Misconfiguration", weight: 0.15},
	},
}

// CorrelatedScore applies the relationship table on top of base scores,
// rounding each result to 4 decimals.
func CorrelatedScore(base map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(base))
	for category, score := range base {
		out[category] = score
	}
	for source, edges := range RelationshipTable {
		sourceScore, ok := base[source]
		if !ok {
			continue
		}
		for _, edge := range edges {
			out[edge.target] = out[edge.target] + sourceScore*edge.weight
		}
	}
	for category, score := range out {
		out[category] = round4(score)
	}
	return out
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// SelectSpawnCategories ranks categories by correlated score descending and
// keeps those with score > 0.
func SelectSpawnCategories(correlated map[string]float64) []string {
	type pair struct {
		category string
		score    float64
	}
	pairs := make([]pair, 0, len(correlated))
	for category, score := range correlated {
		if score > 0 {
			pairs = append(pairs, pair{category, score})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].score != pairs[j].score {
			return pairs[i].score > pairs[j].score
		}
		return pairs[i].category < pairs[j].category
	})
	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = p.category
	}
	return out
}

// FilterByTechStack drops categories irrelevant to the detected stack; A06
// (dependency vulnerabilities) is dropped when no dependency manifests were
// observed in codebase stats.
func FilterByTechStack(selected []string, hasDependencyManifests bool) []string {
	filtered := make([]string, 0, len(selected))
	for _, category := range selected {
		if category == "A06:2021-Vulnerable and Outdated Components" && !hasDependencyManifests {
			continue
		}
		filtered = append(filtered, category)
	}
	return filtered
}

// BuildExecutionPlan emits the ordered execution_plan, ranked by correlated
// score descending with a 1-based order.
func BuildExecutionPlan(filtered []string, correlated map[string]float64) []scanstate.PlanEntry {
	plan := make([]scanstate.PlanEntry, len(filtered))
	for i, category := range filtered {
		plan[i] = scanstate.PlanEntry{
			Order:    i + 1,
			Category: category,
			Score:    correlated[category],
		}
	}
	return plan
}
