// Package analysis implements the Analysis Subgraph: Planner, the four
// obligatory scanners, Aggregator, Reflector, Targeted Rescan, and Mapper.
package analysis

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/SafwanAhmed08/DeplAI/internal/scanstate"
	"github.com/SafwanAhmed08/DeplAI/internal/toolruntime"
)

// Plan is the Planner's advisory telemetry, stored under
// repo_metadata.analysis_plan.
type Plan struct {
	HasSourceFiles         bool `json:"has_source_files"`
	HasDependencyManifests bool `json:"has_dependency_manifests"`
	HasConfigFiles         bool `json:"has_config_files"`
}

var dependencyManifests = map[string]bool{
	"package.json": true, "go.mod": true, "requirements.txt": true,
	"pyproject.toml": true, "pom.xml": true, "build.gradle": true, "Cargo.toml": true,
}

var configFilePatterns = []string{".yaml", ".yml", ".toml", ".ini", ".env", ".json"}
var sourceExtensions = map[string]bool{
	".py": true, ".ts": true, ".tsx": true, ".js": true, ".jsx": true,
	".java": true, ".go": true, ".rs": true,
}

// BuildPlan inspects a flat file listing for the presence of source
// extensions, dependency manifests, and configuration files.
func BuildPlan(paths []string) Plan {
	plan := Plan{}
	for _, p := range paths {
		base := p
		if i := strings.LastIndex(p, "/"); i >= 0 {
			base = p[i+1:]
		}
		if dependencyManifests[base] {
			plan.HasDependencyManifests = true
		}
		ext := ""
		if i := strings.LastIndex(base, "."); i >= 0 {
			ext = base[i:]
		}
		if sourceExtensions[strings.ToLower(ext)] {
			plan.HasSourceFiles = true
		}
		for _, pat := range configFilePatterns {
			if strings.HasSuffix(strings.ToLower(base), pat) {
				plan.HasConfigFiles = true
			}
		}
	}
	return plan
}

// obligatoryScanners always run, regardless of what the Planner observed.
var obligatoryScanners = []string{"ast_scanner", "regex_scanner", "dependency_scanner", "config_scanner"}

// RunScanners invokes every obligatory scanner and returns one
// RawToolOutput envelope per tool, in catalog order.
func RunScanners(ctx context.Context, runner *toolruntime.Runner, volumeName string) []scanstate.RawToolOutput {
	outputs := make([]scanstate.RawToolOutput, 0, len(obligatoryScanners))
	for _, tool := range obligatoryScanners {
		result := runner.RunTool(ctx, tool, volumeName)
		outputs = append(outputs, scanstate.RawToolOutput{
			Tool:     tool,
			Findings: result.Findings,
			Summary:  result.Summary,
		})
	}
	return outputs
}

// Aggregate flattens raw_tool_outputs, deduplicating by (scanner, type,
// file, line) while preserving first occurrence, and assigns the stable id
// scan_id-scanner-index.
func Aggregate(scanID string, rawOutputs []scanstate.RawToolOutput) []scanstate.Finding {
	seen := map[string]bool{}
	var out []scanstate.Finding
	counters := map[string]int{}

	for _, raw := range rawOutputs {
		for _, f := range raw.Findings {
			key := fmt.Sprintf("%s|%s|%s|%d", f.Scanner, f.Type, f.FilePath, f.LineNumber)
			if seen[key] {
				continue
			}
			seen[key] = true
			index := counters[f.Scanner]
			counters[f.Scanner] = index + 1
			f.ID = fmt.Sprintf("%s-%s-%d", scanID, f.Scanner, index)
			out = append(out, f)
		}
	}
	return out
}

// Reflect compares the set of tools actually seen against the required set,
// returning the missing ones as coverage_gaps. A tool counts as seen once its
// envelope is present in rawOutputs, whether or not it reported findings. If
// a rescan already occurred, gaps are forced empty (the loop executes at
// most once per scan).
func Reflect(rawOutputs []scanstate.RawToolOutput, rescansTriggered bool) []string {
	if rescansTriggered {
		return []string{}
	}
	seen := map[string]bool{}
	for _, raw := range rawOutputs {
		seen[raw.Tool] = true
	}
	var gaps []string
	for _, tool := range toolruntime.RequiredScanners {
		if !seen[tool] {
			gaps = append(gaps, tool)
		}
	}
	return gaps
}

var evidenceRefPattern = regexp.MustCompile(`[^\s:]+:\d+`)

// genericCategories are category hints too vague to count as a concrete
// signal for the purposes of the rescan filter.
var genericCategories = map[string]bool{"": true, "unknown": true, "generic": true}

// isConcreteFinding requires a file:line evidence reference and a
// non-generic category hint.
func isConcreteFinding(f scanstate.Finding) bool {
	if !evidenceRefPattern.MatchString(f.Evidence) && !evidenceRefPattern.MatchString(f.FilePath) {
		return false
	}
	return !genericCategories[strings.ToLower(strings.TrimSpace(f.Category))]
}

// RunTargetedRescan re-invokes exactly the scanners named in gaps, keeps
// only concrete findings, and tags them with source_tool provenance.
func RunTargetedRescan(ctx context.Context, runner *toolruntime.Runner, volumeName string, gaps []string) []scanstate.Finding {
	var out []scanstate.Finding
	for _, tool := range gaps {
		result := runner.RunTool(ctx, tool, volumeName)
		for _, f := range result.Findings {
			if !isConcreteFinding(f) {
				continue
			}
			f.SourceTool = tool
			out = append(out, f)
		}
	}
	return out
}

// categoryHintTable maps a scanner's inferred category hint to the fixed
// OWASP code set; unknown hints default to A04.
var categoryHintTable = map[string]string{
	"A01:2021-Broken Access Control":                       "A01:2021-Broken Access Control",
	"A02:2021-Cryptographic Failures":                      "A02:2021-Cryptographic Failures",
	"A03:2021-Injection":                                   "A03:2021-Injection",
	"A04:2021-Insecure Design":                              "A04:2021-Insecure Design",
	"A05:2021-Security Misconfiguration":                   "A05:2021-Security Misconfiguration",
	"A06:2021-Vulnerable and Outdated Components":           "A06:2021-Vulnerable and Outdated Components",
	"A07:2021-Identification and Authentication Failures":   "A07:2021-Identification and Authentication Failures",
	"A08:2021-Software and Data Integrity Failures":         "A08:2021-Software and Data Integrity Failures",
	"A09:2021-Security Logging and Monitoring Failures":     "A09:2021-Security Logging and Monitoring Failures",
	"A10:2021-Server-Side Request Forgery":                  "A10:2021-Server-Side Request Forgery",
}

const defaultCategory = "A04:2021-Insecure Design"

// MapToCategories groups normalized findings by the fixed category-hint
// table, producing owasp_mapped.
func MapToCategories(findings []scanstate.Finding) map[string][]scanstate.Finding {
	mapped := map[string][]scanstate.Finding{}
	for _, f := range findings {
		category, ok := categoryHintTable[f.Category]
		if !ok {
			category = defaultCategory
		}
		mapped[category] = append(mapped[category], f)
	}
	return mapped
}
