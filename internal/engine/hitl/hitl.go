// Package hitl implements the optional human-in-the-loop gate: prompt,
// wait-for-decision, and apply-decision, grounded on this codebase's
// decision-gate flow.
package hitl

import (
	"strconv"
	"strings"

	"github.com/SafwanAhmed08/DeplAI/internal/scanstate"
)

// AllowedDecisions is the normalized decision vocabulary.
var AllowedDecisions = map[string]bool{"approve": true, "reject": true}

// DefaultPollSeconds is the wait-for-decision polling cadence.
const DefaultPollSeconds = 2

// DefaultTimeoutSeconds is used when no config, env, or state override
// resolves a timeout.
const DefaultTimeoutSeconds = 60

// DefaultDecision is the verdict applied when the wait bound is reached
// without a decision.
const DefaultDecision = "reject"

// NormalizeDecision lowercases and trims raw input, accepting it only if it
// is in AllowedDecisions.
func NormalizeDecision(raw string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	return normalized, AllowedDecisions[normalized]
}

// ResolveTimeoutSeconds follows config -> env -> state -> default, in that
// priority order, skipping any source that does not resolve to a positive
// integer.
func ResolveTimeoutSeconds(configSeconds int, envValue string, stateSeconds int) int {
	if configSeconds > 0 {
		return configSeconds
	}
	if v, err := strconv.Atoi(strings.TrimSpace(envValue)); err == nil && v > 0 {
		return v
	}
	if stateSeconds > 0 {
		return stateSeconds
	}
	return DefaultTimeoutSeconds
}

// ResolveDefaultDecision follows the same priority chain as
// ResolveTimeoutSeconds, falling back to DefaultDecision.
func ResolveDefaultDecision(configDecision, envDecision, stateDecision string) string {
	for _, candidate := range []string{configDecision, envDecision, stateDecision} {
		if normalized, ok := NormalizeDecision(candidate); ok {
			return normalized
		}
	}
	return DefaultDecision
}

// PromptEnvelope is the repo_metadata.hitl value written when the gate
// opens.
type PromptEnvelope struct {
	Status         string `json:"status"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	DefaultVerdict string `json:"default_verdict"`
}

func Prompt(timeoutSeconds int, defaultVerdict string) PromptEnvelope {
	return PromptEnvelope{
		Status:         "awaiting_decision",
		TimeoutSeconds: timeoutSeconds,
		DefaultVerdict: defaultVerdict,
	}
}

// Outcome is the wait-for-decision result: the effective decision and
// whether the wait bound was reached instead of an explicit decision.
type Outcome struct {
	Decision string
	TimedOut bool
}

// ResolveOutcome picks between an explicit decision (signal payload or
// state-embedded decision) and the timeout fallback.
func ResolveOutcome(explicitDecision string, timedOut bool, defaultVerdict string) Outcome {
	if !timedOut {
		if normalized, ok := NormalizeDecision(explicitDecision); ok {
			return Outcome{Decision: normalized, TimedOut: false}
		}
	}
	return Outcome{Decision: defaultVerdict, TimedOut: true}
}

// ApplyDecision returns the phase/stage field updates the master graph must
// merge into state. On reject, Analysis/Correlation/Execution stay (or
// become) skipped; on approve, those fields are left untouched so the
// orchestrator proceeds down the normal analysis path.
func ApplyDecision(outcome Outcome) map[string]any {
	if outcome.Decision != "reject" {
		return map[string]any{
			"hitl_phase": scanstate.StageCompleted,
		}
	}
	return map[string]any{
		"hitl_phase":        scanstate.StageCompleted,
		"analysis_phase":    scanstate.StageSkipped,
		"correlation_phase": scanstate.StageSkipped,
		"execution_phase":   scanstate.StageSkipped,
		"analysis_stage":    "skipped_due_to_hitl_rejection",
	}
}
