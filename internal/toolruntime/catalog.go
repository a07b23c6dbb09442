// Package toolruntime wraps the sandbox runtime with a tool catalog,
// enforcing the strict JSON findings contract and normalizing results.
package toolruntime

import "time"

// ToolSpec is one named recipe in the tool catalog, grounded on the
// category/tool taxonomy shape used elsewhere in this codebase's agent
// tooling (name, category, default invocation).
type ToolSpec struct {
	Name           string
	Image          string
	Entrypoint     []string
	Argv           []string
	DefaultTimeout time.Duration
	Category       string
	DefaultSeverity string
}

// Catalog is the fixed tool_name -> spec table. It is a package-level map
// literal rather than a config file because spec.md treats scanner rule
// content as pluggable and out of scope; only the invocation shape is
// fixed here.
var Catalog = map[string]ToolSpec{
	"ast_scanner": {
		Name:           "ast_scanner",
		Image:          "deplai/scanner-ast:latest",
		Argv:           []string{"scan-ast", "/workspace"},
		DefaultTimeout: 90 * time.Second,
		Category:       "A03:2021-Injection",
		DefaultSeverity: "medium",
	},
	"regex_scanner": {
		Name:           "regex_scanner",
		Image:          "deplai/scanner-regex:latest",
		Argv:           []string{"scan-regex", "/workspace"},
		DefaultTimeout: 60 * time.Second,
		Category:       "A02:2021-Cryptographic Failures",
		DefaultSeverity: "medium",
	},
	"dependency_scanner": {
		Name:           "dependency_scanner",
		Image:          "deplai/scanner-deps:latest",
		Argv:           []string{"scan-deps", "/workspace"},
		DefaultTimeout: 120 * time.Second,
		Category:       "A06:2021-Vulnerable and Outdated Components",
		DefaultSeverity: "high",
	},
	"config_scanner": {
		Name:           "config_scanner",
		Image:          "deplai/scanner-config:latest",
		Argv:           []string{"scan-config", "/workspace"},
		DefaultTimeout: 60 * time.Second,
		Category:       "A05:2021-Security Misconfiguration",
		DefaultSeverity: "medium",
	},
	"generic_pattern_scan": {
		Name:           "generic_pattern_scan",
		Image:          "deplai/scanner-generic:latest",
		Argv:           []string{"scan-generic", "/workspace"},
		DefaultTimeout: 60 * time.Second,
		Category:       "A04:2021-Insecure Design",
		DefaultSeverity: "low",
	},
}

// RequiredScanners is the set the Reflector checks coverage against.
var RequiredScanners = []string{"ast_scanner", "regex_scanner", "dependency_scanner", "config_scanner"}

// CategoryToolTable is the Execution Subgraph's fixed category -> tools
// lookup; categories absent from the table fall back to
// ["generic_pattern_scan"].
var CategoryToolTable = map[string][]string{
	"A01:2021-Broken Access Control":            {"config_scanner", "ast_scanner"},
	"A02:2021-Cryptographic Failures":           {"regex_scanner"},
	"A03:2021-Injection":                        {"ast_scanner", "regex_scanner"},
	"A04:2021-Insecure Design":                  {"generic_pattern_scan"},
	"A05:2021-Security Misconfiguration":        {"config_scanner"},
	"A06:2021-Vulnerable and Outdated Components": {"dependency_scanner"},
	"A07:2021-Identification and Authentication Failures": {"ast_scanner", "config_scanner"},
	"A08:2021-Software and Data Integrity Failures":       {"dependency_scanner", "config_scanner"},
	"A09:2021-Security Logging and Monitoring Failures":   {"config_scanner"},
	"A10:2021-Server-Side Request Forgery":                {"ast_scanner"},
}

// ToolWeight is the fixed priority table used by the Tool Prioritizer;
// higher runs first.
var ToolWeight = map[string]int{
	"ast_scanner":          90,
	"dependency_scanner":   80,
	"config_scanner":       70,
	"regex_scanner":        60,
	"generic_pattern_scan": 10,
}

// ToolsForCategory returns the fixed tool list for a category, defaulting to
// generic_pattern_scan, ordered by descending ToolWeight.
func ToolsForCategory(category string) []string {
	tools, ok := CategoryToolTable[category]
	if !ok || len(tools) == 0 {
		return []string{"generic_pattern_scan"}
	}
	out := append([]string{}, tools...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && ToolWeight[out[j-1]] < ToolWeight[out[j]]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
