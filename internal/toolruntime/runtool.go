package toolruntime

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/SafwanAhmed08/DeplAI/internal/sandbox"
	"github.com/SafwanAhmed08/DeplAI/internal/scanstate"
)

// Envelope is the tool stdout contract: {findings: [...], summary: {...}}.
type Envelope struct {
	Findings []RawFinding   `json:"findings"`
	Summary  map[string]any `json:"summary"`
}

// RawFinding is a finding as a tool emits it, before normalization.
type RawFinding struct {
	Title      string  `json:"title"`
	Severity   string  `json:"severity,omitempty"`
	Evidence   string  `json:"evidence"`
	Category   string  `json:"category,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// Result is run_tool's outcome: a normalized envelope plus the classified
// status and exit code.
type Result struct {
	Tool     string
	Status   string // completed | failed | timeout | missing-executor
	ExitCode int
	Findings []scanstate.Finding
	Summary  map[string]any
}

const defaultConfidence = 0.6

// Runner invokes Tool Runtime operations against a sandbox.
type Runner struct {
	Sandbox *sandbox.Client
}

// RunTool builds argv from the catalog entry, invokes the Sandbox Runtime
// with a read-only mount and network disabled, and normalizes the result.
func (r *Runner) RunTool(ctx context.Context, toolName, volumeName string) Result {
	spec, ok := Catalog[toolName]
	if !ok {
		return Result{Tool: toolName, Status: "failed", ExitCode: 1}
	}

	timeout := spec.DefaultTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	runRes, err := r.Sandbox.Run(ctx, sandbox.RunRequest{
		Image:         spec.Image,
		Entrypoint:    spec.Entrypoint,
		Argv:          spec.Argv,
		VolumeName:    volumeName,
		ReadOnlyMount: true,
		NetworkNone:   true,
		Timeout:       timeout,
	})
	if err != nil {
		switch {
		case errors.Is(err, sandbox.ErrExecutorMissing):
			return Result{Tool: toolName, Status: "missing-executor", ExitCode: 127}
		case errors.Is(err, sandbox.ErrTimeout):
			return Result{Tool: toolName, Status: "timeout", ExitCode: 124}
		default:
			return Result{Tool: toolName, Status: "failed", ExitCode: 1}
		}
	}

	if runRes.ExitCode != 0 {
		return Result{Tool: toolName, Status: "failed", ExitCode: 1}
	}

	env, ok := parseLastJSONLine(runRes.Stdout)
	if !ok {
		return Result{Tool: toolName, Status: "failed", ExitCode: 1}
	}

	findings := make([]scanstate.Finding, 0, len(env.Findings))
	for _, raw := range env.Findings {
		findings = append(findings, normalizeFinding(toolName, spec, raw))
	}

	return Result{
		Tool:     toolName,
		Status:   "completed",
		ExitCode: 0,
		Findings: findings,
		Summary:  env.Summary,
	}
}

// parseLastJSONLine requires the last non-empty line of stdout to parse as
// an object with a findings list.
func parseLastJSONLine(stdout string) (Envelope, bool) {
	lines := strings.Split(strings.TrimRight(stdout, "\n"), "\n")
	last := ""
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			last = lines[i]
			break
		}
	}
	if last == "" {
		return Envelope{}, false
	}
	var env Envelope
	if err := json.Unmarshal([]byte(last), &env); err != nil {
		return Envelope{}, false
	}
	if env.Findings == nil {
		return Envelope{}, false
	}
	return env, true
}

// evidenceLocationPattern pulls a file:line reference out of a finding's
// free-form evidence string, e.g. "app.go:42: missing input validation".
var evidenceLocationPattern = regexp.MustCompile(`([^\s:]+):(\d+)`)

// parseEvidenceLocation extracts the first file:line reference from
// evidence, if any.
func parseEvidenceLocation(evidence string) (string, int) {
	m := evidenceLocationPattern.FindStringSubmatch(evidence)
	if m == nil {
		return "", 0
	}
	line, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0
	}
	return m[1], line
}

func normalizeFinding(toolName string, spec ToolSpec, raw RawFinding) scanstate.Finding {
	category := raw.Category
	if strings.TrimSpace(category) == "" {
		category = spec.Category
	}
	severity := strings.ToLower(strings.TrimSpace(raw.Severity))
	if severity == "" {
		severity = spec.DefaultSeverity
	}
	confidence := raw.Confidence
	if confidence <= 0 {
		confidence = defaultConfidence
	}
	filePath, lineNumber := parseEvidenceLocation(raw.Evidence)
	return scanstate.Finding{
		Scanner:        toolName,
		Type:           toolName,
		Category:       category,
		Title:          raw.Title,
		Severity:       severity,
		Evidence:       raw.Evidence,
		FilePath:       filePath,
		LineNumber:     lineNumber,
		ToolProvenance: toolName,
		Confidence:     confidence,
		Reasoning:      raw.Reasoning,
		OriginParser:   "strict_json",
	}
}
