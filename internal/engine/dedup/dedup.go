// Package dedup implements the Smart-Dedup Subgraph: a ten-stage pipeline
// collapsing the union of normalized and category-aggregated findings into
// intelligent_findings.
package dedup

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/SafwanAhmed08/DeplAI/internal/scanstate"
)

// jaccardThreshold is the fixed Semantic Dedup merge threshold.
const jaccardThreshold = 0.7

// sourceFinding is the Artifact Collector's labeled input unit.
type sourceFinding struct {
	finding scanstate.Finding
	origin  string
}

// Collect labels each source finding with its origin (normalized_findings vs
// category-aggregated), then flattens into one slice (Artifact Collector).
func Collect(normalized, categoryAggregated []scanstate.Finding) []sourceFinding {
	out := make([]sourceFinding, 0, len(normalized)+len(categoryAggregated))
	for _, f := range normalized {
		out = append(out, sourceFinding{finding: f, origin: "normalized_findings"})
	}
	for _, f := range categoryAggregated {
		out = append(out, sourceFinding{finding: f, origin: "category_aggregated"})
	}
	return out
}

// detectFormat tags every Go-native Finding as internal_structured; the
// unknown branch exists for parity with the pipeline's external-artifact
// case, which this engine never produces (Format Detector + Known-format
// Parser collapse to a no-op pass-through here).
func detectFormat(sourceFinding) string { return "internal_structured" }

// MapToUnified runs Schema Mapper + Taxonomy Tagger, producing the unified
// record shape with deterministic IDs.
func MapToUnified(scanID string, sources []sourceFinding) []scanstate.UnifiedFinding {
	out := make([]scanstate.UnifiedFinding, 0, len(sources))
	for i, src := range sources {
		if detectFormat(src) != "internal_structured" {
			continue
		}
		f := src.finding
		id := fmt.Sprintf("%s-uf-%s", scanID, shortMD5(fmt.Sprintf("%s|%s|%d|%d", f.Title, f.FilePath, f.LineNumber, i)))
		category := normalizeCategory(f.Category)
		out = append(out, scanstate.UnifiedFinding{
			FindingID:   id,
			Title:       f.Title,
			Description: f.Evidence,
			Category:    category,
			OwaspID:     category,
			Severity:    strings.ToLower(f.Severity),
			Evidence:    f.Evidence,
			FilePath:    f.FilePath,
			LineNumber:  f.LineNumber,
			ToolSources: []string{f.ToolProvenance},
			Confidence:  round2(f.Confidence),
			Reasoning:   f.Reasoning,
		})
	}
	return out
}

func shortMD5(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}

// owaspDefaultCategory is the fallback category for a hint this codebase
// doesn't recognize.
const owaspDefaultCategory = "A04:2021-Insecure Design"

// owaspHintMap maps a free-form scanner category hint to its OWASP category.
var owaspHintMap = map[string]string{
	"injection":                 "A03:2021-Injection",
	"broken_access_control":     "A01:2021-Broken Access Control",
	"cryptographic_failures":    "A02:2021-Cryptographic Failures",
	"security_misconfiguration": "A05:2021-Security Misconfiguration",
	"vulnerable_components":     "A06:2021-Vulnerable and Outdated Components",
	"insecure_transport":        owaspDefaultCategory,
}

// isOwaspShaped reports whether category already has an `Axx:` prefix.
func isOwaspShaped(category string) bool {
	prefix, _, ok := strings.Cut(category, ":")
	if !ok || len(prefix) != 3 {
		return false
	}
	if prefix[0] != 'A' {
		return false
	}
	return prefix[1] >= '0' && prefix[1] <= '9' && prefix[2] >= '0' && prefix[2] <= '9'
}

// normalizeCategory maps free-form category text into the fixed Axx:2021-…
// shape; categories already in that shape pass through unchanged, anything
// else is resolved through the hint map or falls back to the default.
func normalizeCategory(raw string) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return owaspDefaultCategory
	}
	if isOwaspShaped(value) {
		return value
	}
	if mapped, ok := owaspHintMap[strings.ToLower(value)]; ok {
		return mapped
	}
	return owaspDefaultCategory
}

// cluster is the working unit for stages 6-9.
type cluster struct {
	members []scanstate.UnifiedFinding
}

// SignatureDedup clusters by exact (title.lower, file.lower, line).
func SignatureDedup(findings []scanstate.UnifiedFinding) []cluster {
	index := map[string]int{}
	var clusters []cluster
	for _, f := range findings {
		key := fmt.Sprintf("%s|%s|%d", strings.ToLower(f.Title), strings.ToLower(f.FilePath), f.LineNumber)
		if i, ok := index[key]; ok {
			clusters[i].members = append(clusters[i].members, f)
			continue
		}
		index[key] = len(clusters)
		clusters = append(clusters, cluster{members: []scanstate.UnifiedFinding{f}})
	}
	return clusters
}

// descriptionTokens lowercases and splits on non-alphanumeric runs.
func descriptionTokens(f scanstate.UnifiedFinding) map[string]bool {
	tokens := map[string]bool{}
	for _, word := range strings.Fields(strings.ToLower(f.Description)) {
		word = strings.Trim(word, ".,:;!?()[]{}\"'")
		if word != "" {
			tokens[word] = true
		}
	}
	return tokens
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for tok := range a {
		if b[tok] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// SemanticDedup greedily merges clusters whose representative description
// token sets overlap at or above the Jaccard threshold.
func SemanticDedup(clusters []cluster) []cluster {
	tokenSets := make([]map[string]bool, len(clusters))
	for i, c := range clusters {
		tokenSets[i] = descriptionTokens(c.members[0])
	}

	merged := make([]bool, len(clusters))
	var out []cluster
	for i := range clusters {
		if merged[i] {
			continue
		}
		acc := clusters[i]
		for j := i + 1; j < len(clusters); j++ {
			if merged[j] {
				continue
			}
			if jaccard(tokenSets[i], tokenSets[j]) >= jaccardThreshold {
				acc.members = append(acc.members, clusters[j].members...)
				merged[j] = true
			}
		}
		out = append(out, acc)
	}
	return out
}

// rootCauseLexicon maps a fixed set of buckets to token triggers.
var rootCauseLexicon = map[string][]string{
	"secret_management": {"secret", "token", "password", "credential", "key"},
	"injection":          {"injection", "sanitize", "escape", "query", "command"},
	"access_control":     {"access", "authorization", "permission", "role", "privilege"},
}

func rootCause(f scanstate.UnifiedFinding) string {
	text := strings.ToLower(f.Title + " " + f.Description + " " + f.Reasoning)
	for _, bucket := range []string{"secret_management", "injection", "access_control"} {
		for _, token := range rootCauseLexicon[bucket] {
			if strings.Contains(text, token) {
				return bucket
			}
		}
	}
	return "general"
}

// ContextDedup groups clusters into the fixed root-cause buckets; the
// grouping itself does not merge clusters further, it only tags them so the
// Merge Executor can attach a root-cause label downstream.
func ContextDedup(clusters []cluster) map[string][]cluster {
	grouped := map[string][]cluster{}
	for _, c := range clusters {
		bucket := rootCause(c.members[0])
		grouped[bucket] = append(grouped[bucket], c)
	}
	return grouped
}

// MergeExecutor collapses each cluster to a canonical DedupCluster record.
func MergeExecutor(grouped map[string][]cluster) []scanstate.DedupCluster {
	var out []scanstate.DedupCluster
	for _, clusters := range grouped {
		for _, c := range clusters {
			out = append(out, collapse(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Representative.FindingID < out[j].Representative.FindingID
	})
	return out
}

func collapse(c cluster) scanstate.DedupCluster {
	rep := c.members[0]
	toolSet := map[string]bool{}
	reasoningSet := map[string]bool{}
	var evidence []string
	var confidenceSum float64

	for _, m := range c.members {
		for _, tool := range m.ToolSources {
			if tool != "" {
				toolSet[tool] = true
			}
		}
		if m.Reasoning != "" {
			reasoningSet[m.Reasoning] = true
		}
		evidence = append(evidence, m.Evidence)
		confidenceSum += m.Confidence
	}

	tools := make([]string, 0, len(toolSet))
	for t := range toolSet {
		tools = append(tools, t)
	}
	sort.Strings(tools)

	reasoning := make([]string, 0, len(reasoningSet))
	for r := range reasoningSet {
		reasoning = append(reasoning, r)
	}
	sort.Strings(reasoning)

	return scanstate.DedupCluster{
		Representative:    rep,
		Evidence:          evidence,
		ToolSources:       tools,
		AverageConfidence: round2(confidenceSum / float64(len(c.members))),
		Reasoning:         reasoning,
		FindingCount:      len(c.members),
		Category:          rep.Category,
	}
}

// severityRank maps a severity name to a 1-5 rank; unknown severities rank
// as info (1).
func severityRank(severity string) int {
	switch strings.ToLower(severity) {
	case "critical":
		return 5
	case "high":
		return 4
	case "medium":
		return 3
	case "low":
		return 2
	default:
		return 1
	}
}

func rankToSeverity(rank int) string {
	switch {
	case rank >= 5:
		return "critical"
	case rank == 4:
		return "high"
	case rank == 3:
		return "medium"
	case rank == 2:
		return "low"
	default:
		return "info"
	}
}

// boostedCategories are the categories whose clusters get a severity bump.
var boostedCategories = map[string]bool{
	"A01:2021-Broken Access Control":  true,
	"A02:2021-Cryptographic Failures": true,
	"A03:2021-Injection":              true,
	"A05:2021-Security Misconfiguration": true,
}

// SeverityAdjuster bumps each cluster's representative severity per the
// fixed rule set and writes intelligent_findings.
func SeverityAdjuster(clusters []scanstate.DedupCluster) []scanstate.UnifiedFinding {
	out := make([]scanstate.UnifiedFinding, 0, len(clusters))
	for _, c := range clusters {
		rank := severityRank(c.Representative.Severity)
		if len(c.ToolSources) >= 2 {
			rank++
		}
		if c.AverageConfidence >= 0.75 {
			rank++
		}
		if boostedCategories[c.Category] {
			rank++
		}
		if rank > 5 {
			rank = 5
		}
		if rank < 1 {
			rank = 1
		}
		finding := c.Representative
		finding.Severity = rankToSeverity(rank)
		finding.ToolSources = c.ToolSources
		finding.Confidence = c.AverageConfidence
		out = append(out, finding)
	}
	return out
}

// Run executes the full ten-stage pipeline.
func Run(scanID string, normalized, categoryAggregated []scanstate.Finding) []scanstate.UnifiedFinding {
	sources := Collect(normalized, categoryAggregated)
	unified := MapToUnified(scanID, sources)
	sigClusters := SignatureDedup(unified)
	semClusters := SemanticDedup(sigClusters)
	grouped := ContextDedup(semClusters)
	merged := MergeExecutor(grouped)
	return SeverityAdjuster(merged)
}
