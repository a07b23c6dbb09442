// Package scanstate defines the immutable shared state snapshot that flows
// through the scan orchestration graph and the merge operation that is the
// only allowed way to produce a new snapshot.
package scanstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"
)

// ErrForbiddenSecretKey is returned by Merge when an update tries to store a
// secret-shaped key outside the allow-list.
var ErrForbiddenSecretKey = errors.New("forbidden secret-like key")

var secretKeyPattern = regexp.MustCompile(`(?i).*(token|key).*`)

// allowedSecretKeys lists the only top-level keys that may match
// secretKeyPattern. Anything else that matches is rejected.
var allowedSecretKeys = map[string]bool{
	"github_token": true,
}

// Phase is the coarse lifecycle discriminant for a scan.
type Phase string

const (
	PhaseMasterOrchestrator       Phase = "master_orchestrator"
	PhaseValidation               Phase = "validation"
	PhaseGitHubAuth               Phase = "github_auth"
	PhaseInitialized              Phase = "initialized"
	PhaseSizeChecked              Phase = "size_checked"
	PhaseCodeAcquired             Phase = "code_acquired"
	PhaseAnalysis                 Phase = "analysis"
	PhaseAnalysisCompleted        Phase = "analysis_completed"
	PhaseCorrelationDecision      Phase = "correlation_decision"
	PhaseCorrelationDecisionDone  Phase = "correlation_decision_completed"
	PhaseExecution                Phase = "execution_phase"
	PhaseExecutionCompleted       Phase = "execution_completed"
	PhaseHITLWaiting              Phase = "hitl_waiting"
	PhaseHITLResolved             Phase = "hitl_resolved"
	PhaseHITLRequired             Phase = "hitl_required"
	PhaseCompleted                Phase = "completed"
	PhaseError                    Phase = "error"
)

// StageStatus is the per-phase status field shared by setup/analysis/
// correlation/execution/hitl/dedup.
type StageStatus string

const (
	StageNotStarted StageStatus = "not_started"
	StageRunning    StageStatus = "running"
	StageCompleted  StageStatus = "completed"
	StageFailed     StageStatus = "failed"
	StageSkipped    StageStatus = "skipped"
)

// TimelineEntry is one append-only record of phase progress.
type TimelineEntry struct {
	Phase string `json:"phase"`
	Event string `json:"event"`
	At    string `json:"at"`
}

// RawToolOutput is one scanner invocation's envelope as appended to
// raw_tool_outputs.
type RawToolOutput struct {
	Tool     string           `json:"tool"`
	Findings []Finding        `json:"findings"`
	Summary  map[string]any   `json:"summary"`
}

// Finding is the canonical per-scanner normalized record.
type Finding struct {
	ID             string  `json:"id,omitempty"`
	Scanner        string  `json:"scanner,omitempty"`
	Type           string  `json:"type,omitempty"`
	Category       string  `json:"category"`
	Title          string  `json:"title"`
	Severity       string  `json:"severity"`
	Evidence       string  `json:"evidence"`
	FilePath       string  `json:"file_path,omitempty"`
	LineNumber     int     `json:"line_number,omitempty"`
	ToolProvenance string  `json:"tool_provenance"`
	Confidence     float64 `json:"confidence"`
	Reasoning      string  `json:"reasoning"`
	OriginParser   string  `json:"origin_parser,omitempty"`
	SourceTool     string  `json:"source_tool,omitempty"`
}

// ExecutionRecord is one tool invocation record inside a category run.
type ExecutionRecord struct {
	ToolName        string  `json:"tool_name"`
	ExecutionTimeMS int64   `json:"execution_time_ms"`
	Status          string  `json:"status"`
	Confidence      float64 `json:"confidence"`
	FindingCount    int     `json:"finding_count"`
}

// CategoryResult is one entry of layer6_results.
type CategoryResult struct {
	Category          string            `json:"category"`
	CategoryStatus    string            `json:"category_status"`
	CategoryConfidence float64          `json:"category_confidence"`
	ExecutionRecord   []ExecutionRecord `json:"execution_record"`
	AggregatedFindings []Finding        `json:"aggregated_findings"`
}

// PlanEntry is one entry of execution_plan.
type PlanEntry struct {
	Order    int     `json:"order"`
	Category string  `json:"category"`
	Score    float64 `json:"score"`
}

// UnifiedFinding is the post-schema-mapper record used by the dedup pipeline.
type UnifiedFinding struct {
	FindingID   string   `json:"finding_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	OwaspID     string   `json:"owasp_id,omitempty"`
	Severity    string   `json:"severity"`
	Evidence    string   `json:"evidence"`
	FilePath    string   `json:"file_path"`
	LineNumber  int      `json:"line_number"`
	ToolSources []string `json:"tool_sources"`
	Confidence  float64  `json:"confidence"`
	Reasoning   string   `json:"reasoning"`
}

// DedupCluster groups unified findings collapsed by the merge executor.
type DedupCluster struct {
	Representative UnifiedFinding `json:"representative"`
	Evidence       []string       `json:"evidence"`
	ToolSources    []string       `json:"tool_sources"`
	AverageConfidence float64     `json:"average_confidence"`
	Reasoning      []string       `json:"reasoning"`
	FindingCount   int            `json:"finding_count"`
	Category       string         `json:"category"`
}

// CleanupStatus tracks idempotent cleanup progress.
type CleanupStatus struct {
	PersistenceCompleted bool `json:"persistence_completed"`
	PersistedCount       int  `json:"persisted_count"`
	VolumeRemoved        bool `json:"volume_removed"`
	Completed            bool `json:"completed"`
}

// ScanState is the immutable shared snapshot passed by value across nodes.
// All updates go through Merge; in-place mutation is forbidden.
type ScanState struct {
	ScanID      string  `json:"scan_id"`
	ProjectID   string  `json:"project_id,omitempty"`
	RepoURL     string  `json:"repo_url"`
	RepoPath    string  `json:"repo_path,omitempty"`
	GitHubToken string  `json:"github_token,omitempty"`

	Phase          Phase       `json:"phase"`
	SetupPhase     StageStatus `json:"setup_phase"`
	AnalysisPhase  StageStatus `json:"analysis_phase"`
	AnalysisStage  string      `json:"analysis_stage,omitempty"`
	CorrelationPhase StageStatus `json:"correlation_phase"`
	ExecutionPhase StageStatus `json:"execution_phase"`
	HITLPhase      StageStatus `json:"hitl_phase"`
	DedupPhase     StageStatus `json:"dedup_phase"`

	RepoMetadata  map[string]any    `json:"repo_metadata"`
	DockerVolumes map[string]string `json:"docker_volumes"`

	Errors []string `json:"errors"`

	RequiresHITL bool `json:"requires_hitl"`

	RawToolOutputs []RawToolOutput `json:"raw_tool_outputs"`
	Findings       []Finding       `json:"findings"`

	OwaspMapped map[string][]Finding `json:"owasp_mapped"`

	BaseScores       map[string]float64 `json:"base_scores"`
	CorrelatedScores map[string]float64 `json:"correlated_scores"`

	SelectedOwaspCategories []string `json:"selected_owasp_categories"`
	FilteredCategories      []string `json:"filtered_categories"`
	ExecutionPlan           []PlanEntry `json:"execution_plan"`

	CoverageGaps     []string `json:"coverage_gaps"`
	RescansTriggered bool     `json:"rescans_triggered"`

	Layer6Results []CategoryResult `json:"layer6_results"`

	FinalFindings     []Finding        `json:"final_findings"`
	UnifiedFindings   []UnifiedFinding `json:"unified_findings"`
	DedupClusters     []DedupCluster   `json:"dedup_clusters"`
	IntelligentFindings []UnifiedFinding `json:"intelligent_findings"`

	CleanupStatus CleanupStatus `json:"cleanup_status"`

	Telemetry       map[string]any `json:"telemetry"`
	AuditRecord     map[string]any `json:"audit_record"`
	ExternalReport  map[string]any `json:"external_report"`
	ExternalExports map[string]any `json:"external_exports"`

	PhaseTimeline []TimelineEntry `json:"phase_timeline"`
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// BuildInitialState returns a fresh snapshot with the timeline seeded by a
// single "initialized" event.
func BuildInitialState(scanID, repoURL, githubToken string) ScanState {
	now := nowISO()
	return ScanState{
		ScanID:           scanID,
		RepoURL:          repoURL,
		GitHubToken:      githubToken,
		Phase:            PhaseMasterOrchestrator,
		SetupPhase:       StageNotStarted,
		AnalysisPhase:    StageNotStarted,
		CorrelationPhase: StageNotStarted,
		ExecutionPhase:   StageNotStarted,
		HITLPhase:        StageNotStarted,
		DedupPhase:       StageNotStarted,
		RepoMetadata:     map[string]any{},
		DockerVolumes:    map[string]string{},
		Errors:           []string{},
		RawToolOutputs:   []RawToolOutput{},
		Findings:         []Finding{},
		OwaspMapped:      map[string][]Finding{},
		BaseScores:       map[string]float64{},
		CorrelatedScores: map[string]float64{},
		SelectedOwaspCategories: []string{},
		FilteredCategories:      []string{},
		ExecutionPlan:           []PlanEntry{},
		CoverageGaps:            []string{},
		Layer6Results:           []CategoryResult{},
		FinalFindings:           []Finding{},
		UnifiedFindings:         []UnifiedFinding{},
		DedupClusters:           []DedupCluster{},
		IntelligentFindings:     []UnifiedFinding{},
		Telemetry:               map[string]any{},
		AuditRecord:             map[string]any{},
		ExternalReport:          map[string]any{},
		ExternalExports:         map[string]any{},
		PhaseTimeline: []TimelineEntry{
			{Phase: string(PhaseMasterOrchestrator), Event: "initialized", At: now},
		},
	}
}

// guardUpdateKeys rejects any top-level update key shaped like a secret
// unless it is explicitly allow-listed.
func guardUpdateKeys(updates map[string]any) error {
	for key := range updates {
		if secretKeyPattern.MatchString(key) && !allowedSecretKeys[key] {
			return fmt.Errorf("%w: key %q", ErrForbiddenSecretKey, key)
		}
	}
	return nil
}

// Merge deep-copies old, applies updates keyed by JSON field name, rejects
// forbidden secret-like keys, and returns the new snapshot. Merge is the
// ONLY allowed write operation on ScanState.
func Merge(old ScanState, updates map[string]any) (ScanState, error) {
	if err := guardUpdateKeys(updates); err != nil {
		return ScanState{}, err
	}

	// Deep copy via JSON round-trip, mirroring the conservative
	// "deep copy then overwrite" baseline: cheap to reason about, and every
	// field on ScanState is already JSON-tagged for the external API.
	blob, err := json.Marshal(old)
	if err != nil {
		return ScanState{}, fmt.Errorf("merge: marshal old state: %w", err)
	}
	merged := map[string]any{}
	if err := json.Unmarshal(blob, &merged); err != nil {
		return ScanState{}, fmt.Errorf("merge: unmarshal old state: %w", err)
	}
	for key, value := range updates {
		merged[key] = value
	}
	mergedBlob, err := json.Marshal(merged)
	if err != nil {
		return ScanState{}, fmt.Errorf("merge: marshal merged state: %w", err)
	}
	var next ScanState
	if err := json.Unmarshal(mergedBlob, &next); err != nil {
		return ScanState{}, fmt.Errorf("merge: unmarshal merged state: %w", err)
	}
	return next, nil
}

// MustMerge panics on guard/marshal failure. Used only where the caller has
// already validated the update bag (e.g. internal timeline appends).
func MustMerge(old ScanState, updates map[string]any) ScanState {
	next, err := Merge(old, updates)
	if err != nil {
		panic(err)
	}
	return next
}

// AppendTimeline is a convenience wrapper producing a timeline append.
func AppendTimeline(state ScanState, phase, event string) ScanState {
	entry := TimelineEntry{Phase: phase, Event: event, At: nowISO()}
	timeline := append(append([]TimelineEntry{}, state.PhaseTimeline...), entry)
	next, err := Merge(state, map[string]any{"phase_timeline": timeline})
	if err != nil {
		// phase_timeline never matches the secret pattern; this can only
		// happen on a marshal failure, which indicates a programming error.
		panic(err)
	}
	return next
}
