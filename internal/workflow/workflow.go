package workflow

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/SafwanAhmed08/DeplAI/internal/engine/analysis"
	"github.com/SafwanAhmed08/DeplAI/internal/engine/correlation"
	"github.com/SafwanAhmed08/DeplAI/internal/engine/dedup"
	"github.com/SafwanAhmed08/DeplAI/internal/engine/execution"
	"github.com/SafwanAhmed08/DeplAI/internal/engine/hitl"
	"github.com/SafwanAhmed08/DeplAI/internal/engine/observability"
	"github.com/SafwanAhmed08/DeplAI/internal/engine/setup"
	"github.com/SafwanAhmed08/DeplAI/internal/engine/validation"
	"github.com/SafwanAhmed08/DeplAI/internal/ghauth"
	"github.com/SafwanAhmed08/DeplAI/internal/scanstate"
)

// HITLDecisionSignal is the channel name an operator's decision arrives on.
const HITLDecisionSignal = "hitl-decision"

// ScanStateQuery is the query handler name the HTTP layer polls for
// status/results.
const ScanStateQuery = "scan-state"

// Activity type names, matching the exported Activities method names that
// worker/main.go registers via w.RegisterActivity(activities).
const (
	activityAuthenticate        = "Authenticate"
	activityCreateVolume        = "CreateVolume"
	activityCloneRepo           = "CloneRepo"
	activityListWorkspaceFiles  = "ListWorkspaceFiles"
	activityRunAnalysisScanners = "RunAnalysisScanners"
	activityRunTargetedRescan   = "RunTargetedRescan"
	activityRunExecutionPlan    = "RunExecutionPlan"
	activityPersistResult       = "PersistResult"
	activityRemoveVolume        = "RemoveVolume"
)

// DecisionSignal is the signal payload for HITLDecisionSignal.
type DecisionSignal struct {
	Decision string
}

var activityOpts = workflow.ActivityOptions{
	StartToCloseTimeout: 10 * time.Minute,
	RetryPolicy: &temporal.RetryPolicy{
		InitialInterval:    2 * time.Second,
		BackoffCoefficient: 2.0,
		MaximumInterval:    30 * time.Second,
		MaximumAttempts:    3,
	},
}

var noRetryOpts = workflow.ActivityOptions{
	StartToCloseTimeout: 10 * time.Minute,
	RetryPolicy: &temporal.RetryPolicy{MaximumAttempts: 1},
}

// ScanWorkflow is the master orchestrator: one execution per scan_id,
// composing Validation/Init -> Setup -> {HITL branch | Analysis ->
// Correlation -> Execution} -> Cleanup -> Observability -> dispatch.
func ScanWorkflow(ctx workflow.Context, initial scanstate.ScanState) (scanstate.ScanState, error) {
	logger := workflow.GetLogger(ctx)
	state := initial
	actCtx := workflow.WithActivityOptions(ctx, activityOpts)
	noRetryCtx := workflow.WithActivityOptions(ctx, noRetryOpts)

	_ = workflow.SetQueryHandler(ctx, ScanStateQuery, func() (scanstate.ScanState, error) {
		return state, nil
	})

	state, err := runValidationAndAuth(actCtx, state)
	if err != nil || len(state.Errors) > 0 {
		return errorHandler(noRetryCtx, state, err)
	}

	state, volumeName, err := runSetup(actCtx, state)
	if err != nil || len(state.Errors) > 0 {
		return errorHandler(noRetryCtx, state, err)
	}

	if state.RequiresHITL {
		state = mustMerge(state, map[string]any{
			"analysis_phase":    scanstate.StageSkipped,
			"correlation_phase": scanstate.StageSkipped,
			"execution_phase":   scanstate.StageSkipped,
			"phase":             scanstate.PhaseHITLWaiting,
		})
		state, err = runHITL(ctx, state)
		if err != nil {
			return errorHandler(noRetryCtx, state, err)
		}
		if state.AnalysisPhase == scanstate.StageSkipped {
			logger.Info("hitl rejected, skipping analysis/correlation/execution", "scan_id", state.ScanID)
		} else {
			state, err = runAnalysisCorrelationExecution(actCtx, state, volumeName)
			if err != nil || len(state.Errors) > 0 {
				return errorHandler(noRetryCtx, state, err)
			}
		}
	} else {
		state, err = runAnalysisCorrelationExecution(actCtx, state, volumeName)
		if err != nil || len(state.Errors) > 0 {
			return errorHandler(noRetryCtx, state, err)
		}
	}

	state = runDedup(state)
	state = runObservability(state)

	state, err = runCleanup(noRetryCtx, state, volumeName)
	if err != nil || !state.CleanupStatus.PersistenceCompleted {
		return errorHandler(noRetryCtx, state, err)
	}

	state = mustMerge(state, map[string]any{"phase": scanstate.PhaseCompleted})
	return state, nil
}

func mustMerge(state scanstate.ScanState, updates map[string]any) scanstate.ScanState {
	return scanstate.MustMerge(state, updates)
}

func runValidationAndAuth(ctx workflow.Context, state scanstate.ScanState) (scanstate.ScanState, error) {
	result := validation.ValidateRequest(state.RepoURL)
	if !result.Valid {
		return mustMerge(state, map[string]any{
			"errors": append(append([]string{}, state.Errors...), "validation: "+result.Error),
			"phase":  scanstate.PhaseError,
		}), nil
	}

	var auth ghauth.AuthResult
	if err := workflow.ExecuteActivity(ctx, activityAuthenticate, AuthenticateRequest{
		Token: state.GitHubToken, Owner: result.Owner, Repo: result.Repo,
	}).Get(ctx, &auth); err != nil {
		return state, err
	}

	record := validation.InitializeScanRecord(state.ScanID)
	metadata := cloneMetadata(state.RepoMetadata)
	metadata["github_auth"] = auth
	metadata["scan_record"] = record

	return mustMerge(state, map[string]any{
		"repo_metadata": metadata,
		"github_token":  nil,
		"phase":         scanstate.PhaseInitialized,
	}), nil
}

func cloneMetadata(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+2)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func runSetup(ctx workflow.Context, state scanstate.ScanState) (scanstate.ScanState, string, error) {
	var volumeName string
	if err := workflow.ExecuteActivity(ctx, activityCreateVolume, state.ScanID).Get(ctx, &volumeName); err != nil {
		return mustMerge(state, map[string]any{
			"errors": append(append([]string{}, state.Errors...), "setup: volume creator: "+err.Error()),
			"phase":  scanstate.PhaseError,
		}), "", err
	}

	repoSizeKB := 0
	if auth, ok := state.RepoMetadata["github_auth"].(map[string]any); ok {
		if kb, ok := auth["repo_size_kb"].(float64); ok {
			repoSizeKB = int(kb)
		}
	}

	var cloneResult CloneResult
	if err := workflow.ExecuteActivity(ctx, activityCloneRepo, CloneRequest{
		VolumeName: volumeName, RepoURL: state.RepoURL, Token: state.GitHubToken, RepoSizeKB: repoSizeKB,
	}).Get(ctx, &cloneResult); err != nil || len(cloneResult.Errors) > 0 {
		msgs := append([]string{}, state.Errors...)
		for _, e := range cloneResult.Errors {
			msgs = append(msgs, fmt.Sprintf("setup: cloner: %s: %s", e.Code, e.Reason))
		}
		return mustMerge(state, map[string]any{"errors": msgs, "phase": scanstate.PhaseError}), volumeName, err
	}

	var files map[string]int64
	if err := workflow.ExecuteActivity(ctx, activityListWorkspaceFiles, volumeName).Get(ctx, &files); err != nil {
		return mustMerge(state, map[string]any{
			"errors": append(append([]string{}, state.Errors...), "setup: codebase stats: "+err.Error()),
			"phase":  scanstate.PhaseError,
		}), volumeName, err
	}
	stats := setup.NewCodebaseStats(files)
	mem := setup.LoadMemory()

	metadata := cloneMetadata(state.RepoMetadata)
	metadata["codebase_stats"] = stats
	metadata["memory"] = mem

	volumes := map[string]string{"code": volumeName}
	for k, v := range state.DockerVolumes {
		volumes[k] = v
	}

	return mustMerge(state, map[string]any{
		"docker_volumes": volumes,
		"repo_metadata":  metadata,
		"requires_hitl":  setup.RequiresHITL(stats),
		"setup_phase":    scanstate.StageCompleted,
		"phase":          scanstate.PhaseSizeChecked,
	}), volumeName, nil
}

func runHITL(ctx workflow.Context, state scanstate.ScanState) (scanstate.ScanState, error) {
	timeoutSeconds := hitl.ResolveTimeoutSeconds(0, "", 0)
	defaultVerdict := hitl.ResolveDefaultDecision("", "", "")
	prompt := hitl.Prompt(timeoutSeconds, defaultVerdict)

	metadata := cloneMetadata(state.RepoMetadata)
	metadata["hitl"] = prompt
	state = mustMerge(state, map[string]any{"repo_metadata": metadata})

	signalChan := workflow.GetSignalChannel(ctx, HITLDecisionSignal)
	deadline := workflow.Now(ctx).Add(time.Duration(timeoutSeconds) * time.Second)

	var decision DecisionSignal
	timedOut := true
	selector := workflow.NewSelector(ctx)
	selector.AddReceive(signalChan, func(c workflow.ReceiveChannel, more bool) {
		c.Receive(ctx, &decision)
		timedOut = false
	})
	timerCtx, cancel := workflow.WithCancel(ctx)
	timer := workflow.NewTimer(timerCtx, deadline.Sub(workflow.Now(ctx)))
	selector.AddFuture(timer, func(workflow.Future) {})
	selector.Select(ctx)
	cancel()

	outcome := hitl.ResolveOutcome(decision.Decision, timedOut, defaultVerdict)
	updates := hitl.ApplyDecision(outcome)
	return mustMerge(state, updates), nil
}

func runAnalysisCorrelationExecution(ctx workflow.Context, state scanstate.ScanState, volumeName string) (scanstate.ScanState, error) {
	var rawOutputs []scanstate.RawToolOutput
	if err := workflow.ExecuteActivity(ctx, activityRunAnalysisScanners, volumeName).Get(ctx, &rawOutputs); err != nil {
		return mustMerge(state, map[string]any{
			"errors": append(append([]string{}, state.Errors...), "analysis: scanners: "+err.Error()),
			"phase":  scanstate.PhaseError,
		}), err
	}

	findings := analysis.Aggregate(state.ScanID, rawOutputs)
	gaps := analysis.Reflect(rawOutputs, state.RescansTriggered)
	rescansTriggered := state.RescansTriggered
	analysisStage := "signals_aggregated"

	if len(gaps) > 0 && !rescansTriggered {
		var rescanFindings []scanstate.Finding
		if err := workflow.ExecuteActivity(ctx, activityRunTargetedRescan, TargetedRescanRequest{
			VolumeName: volumeName, Gaps: gaps,
		}).Get(ctx, &rescanFindings); err != nil {
			return mustMerge(state, map[string]any{
				"errors": append(append([]string{}, state.Errors...), "analysis: targeted rescan: "+err.Error()),
				"phase":  scanstate.PhaseError,
			}), err
		}
		findings = append(findings, rescanFindings...)
		rescansTriggered = true
		analysisStage = "signals_aggregated_after_rescan"
		gaps = []string{}
	}

	mapped := analysis.MapToCategories(findings)

	state = mustMerge(state, map[string]any{
		"raw_tool_outputs":  rawOutputs,
		"findings":          findings,
		"owasp_mapped":      mapped,
		"coverage_gaps":     gaps,
		"rescans_triggered": rescansTriggered,
		"analysis_stage":    analysisStage,
		"analysis_phase":    scanstate.StageCompleted,
		"phase":             scanstate.PhaseAnalysisCompleted,
	})

	base := correlation.BaseScore(mapped)
	correlated := correlation.CorrelatedScore(base)
	selected := correlation.SelectSpawnCategories(correlated)

	hasManifests := false
	if stats, ok := state.RepoMetadata["codebase_stats"].(map[string]any); ok {
		if v, ok := stats["has_dependency_manifests"].(bool); ok {
			hasManifests = v
		}
	} else {
		hasManifests = true
	}
	filtered := correlation.FilterByTechStack(selected, hasManifests)
	plan := correlation.BuildExecutionPlan(filtered, correlated)

	state = mustMerge(state, map[string]any{
		"base_scores":               base,
		"correlated_scores":         correlated,
		"selected_owasp_categories": selected,
		"filtered_categories":       filtered,
		"execution_plan":            plan,
		"correlation_phase":         scanstate.StageCompleted,
		"phase":                     scanstate.PhaseCorrelationDecisionDone,
	})

	var layer6Results []scanstate.CategoryResult
	if err := workflow.ExecuteActivity(ctx, activityRunExecutionPlan, ExecutionPlanRequest{
		Plan: plan, FilteredCategories: filtered, VolumeName: volumeName,
	}).Get(ctx, &layer6Results); err != nil {
		return mustMerge(state, map[string]any{
			"errors": append(append([]string{}, state.Errors...), "execution: "+err.Error()),
			"phase":  scanstate.PhaseError,
		}), err
	}

	finalFindings := execution.Merge(state.Findings, layer6Results)

	return mustMerge(state, map[string]any{
		"layer6_results":  layer6Results,
		"final_findings":  finalFindings,
		"execution_phase": scanstate.StageCompleted,
		"phase":           scanstate.PhaseExecutionCompleted,
	}), nil
}

func runDedup(state scanstate.ScanState) scanstate.ScanState {
	intelligent := dedup.Run(state.ScanID, state.Findings, state.FinalFindings)
	return mustMerge(state, map[string]any{
		"intelligent_findings": intelligent,
		"dedup_phase":          scanstate.StageCompleted,
	})
}

func runObservability(state scanstate.ScanState) scanstate.ScanState {
	durations := observability.PhaseDurations(state.PhaseTimeline)
	toolStats := observability.ToolRuntimeStatsByName(state.Layer6Results)
	risk := observability.RiskProfileScore(state.IntelligentFindings)
	confidence := observability.ConfidenceScore(state.Layer6Results)
	noise := observability.NoiseRatio(state.RawToolOutputs, state.IntelligentFindings)
	summary := observability.BuildExecutiveSummary(state.IntelligentFindings, confidence)
	posture := observability.BuildSecurityPosture(state.IntelligentFindings, state.Layer6Results)
	audit := observability.BuildAuditRecord(state, summary, posture, risk, confidence)

	telemetry := map[string]any{
		"phase_durations_ms": durations,
		"tool_runtime_stats": toolStats,
		"risk_profile_score": risk,
		"confidence_score":   confidence,
		"noise_ratio":        noise,
	}

	return mustMerge(state, map[string]any{
		"telemetry":    telemetry,
		"audit_record": audit,
	})
}

func runCleanup(ctx workflow.Context, state scanstate.ScanState, volumeName string) (scanstate.ScanState, error) {
	var cleanupStatus scanstate.CleanupStatus
	err := workflow.ExecuteActivity(ctx, activityPersistResult, PersistRequest{State: state}).Get(ctx, &cleanupStatus)
	if err != nil {
		state = mustMerge(state, map[string]any{
			"errors": append(append([]string{}, state.Errors...), "cleanup: persist: "+err.Error()),
		})
	}

	volErr := workflow.ExecuteActivity(ctx, activityRemoveVolume, volumeName).Get(ctx, nil)
	volumeRemoved := volErr == nil
	if volErr != nil {
		state = mustMerge(state, map[string]any{
			"errors": append(append([]string{}, state.Errors...), "cleanup: remove volume: "+volErr.Error()),
		})
	}

	cleanupStatus.VolumeRemoved = volumeRemoved
	cleanupStatus.Completed = cleanupStatus.PersistenceCompleted && volumeRemoved

	return mustMerge(state, map[string]any{
		"cleanup_status": cleanupStatus,
	}), err
}

// errorHandler is the terminal node: ensures a canonical error is present,
// attempts forced volume removal, and leaves phase=error.
func errorHandler(ctx workflow.Context, state scanstate.ScanState, cause error) (scanstate.ScanState, error) {
	errs := append([]string{}, state.Errors...)
	if len(errs) == 0 {
		reason := "unspecified error"
		if cause != nil {
			reason = cause.Error()
		}
		errs = append(errs, "master_orchestrator: "+reason)
	}

	volumeName := state.DockerVolumes["code"]
	if volumeName != "" && !state.CleanupStatus.VolumeRemoved {
		_ = workflow.ExecuteActivity(ctx, activityRemoveVolume, volumeName).Get(ctx, nil)
	}

	state = mustMerge(state, map[string]any{
		"errors": errs,
		"phase":  scanstate.PhaseError,
	})
	if cause != nil {
		return state, cause
	}
	return state, fmt.Errorf("scan %s terminated: %s", state.ScanID, errs[len(errs)-1])
}
