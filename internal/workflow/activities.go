// Package workflow composes the scan-graph subgraphs into one Temporal
// workflow and its supporting Activities, grounded on this codebase's
// Activities-struct/workflow-function pattern.
package workflow

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/SafwanAhmed08/DeplAI/internal/engine/analysis"
	"github.com/SafwanAhmed08/DeplAI/internal/engine/cleanup"
	"github.com/SafwanAhmed08/DeplAI/internal/engine/execution"
	"github.com/SafwanAhmed08/DeplAI/internal/engine/setup"
	"github.com/SafwanAhmed08/DeplAI/internal/ghauth"
	"github.com/SafwanAhmed08/DeplAI/internal/notify"
	"github.com/SafwanAhmed08/DeplAI/internal/sandbox"
	"github.com/SafwanAhmed08/DeplAI/internal/scanstate"
	"github.com/SafwanAhmed08/DeplAI/internal/store"
	"github.com/SafwanAhmed08/DeplAI/internal/toolruntime"
)

// Activities groups every side-effecting operation the ScanWorkflow drives
// through workflow.ExecuteActivity.
type Activities struct {
	Sandbox *sandbox.Client
	Runner  *toolruntime.Runner
	Store   *store.Store
	Notify  notify.Hook
}

func NewActivities(sandboxClient *sandbox.Client, st *store.Store, hook notify.Hook) *Activities {
	if hook == nil {
		hook = notify.NoopHook{}
	}
	return &Activities{
		Sandbox: sandboxClient,
		Runner:  &toolruntime.Runner{Sandbox: sandboxClient},
		Store:   st,
		Notify:  hook,
	}
}

// AuthenticateRequest/Result activities.

type AuthenticateRequest struct {
	Token string
	Owner string
	Repo  string
}

func (a *Activities) Authenticate(ctx context.Context, req AuthenticateRequest) (ghauth.AuthResult, error) {
	return ghauth.Authenticate(ctx, req.Token, req.Owner, req.Repo), nil
}

// CreateVolumeRequest/Result.

func (a *Activities) CreateVolume(ctx context.Context, scanID string) (string, error) {
	return setup.CreateVolume(ctx, a.Sandbox, scanID)
}

type CloneRequest struct {
	VolumeName string
	RepoURL    string
	Token      string
	RepoSizeKB int
}

type CloneResult struct {
	ExitCode int
	Stderr   string
	Errors   []setup.ErrorRecord
}

func (a *Activities) CloneRepo(ctx context.Context, req CloneRequest) (CloneResult, error) {
	result, errs := setup.CloneRepo(ctx, a.Sandbox, req.VolumeName, req.RepoURL, req.Token, req.RepoSizeKB)
	return CloneResult{ExitCode: result.ExitCode, Stderr: result.Stderr, Errors: errs}, nil
}

// ListWorkspaceFiles runs a counting job inside the sandbox and returns a
// flat path->size map for the Codebase Stats fold.
func (a *Activities) ListWorkspaceFiles(ctx context.Context, volumeName string) (map[string]int64, error) {
	result, err := a.Sandbox.Run(ctx, sandbox.RunRequest{
		Image:         "deplai/scanner-generic:latest",
		Entrypoint:    []string{"find-files"},
		Argv:          []string{"/workspace"},
		VolumeName:    volumeName,
		ReadOnlyMount: true,
		NetworkNone:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("codebase stats: %w", err)
	}
	return parseFileListing(result.Stdout), nil
}

func (a *Activities) RunAnalysisScanners(ctx context.Context, volumeName string) ([]scanstate.RawToolOutput, error) {
	return analysis.RunScanners(ctx, a.Runner, volumeName), nil
}

type TargetedRescanRequest struct {
	VolumeName string
	Gaps       []string
}

func (a *Activities) RunTargetedRescan(ctx context.Context, req TargetedRescanRequest) ([]scanstate.Finding, error) {
	return analysis.RunTargetedRescan(ctx, a.Runner, req.VolumeName, req.Gaps), nil
}

// ExecutionPlanRequest/Result run the full Execution Subgraph: one Category
// Subgraph per plan entry.

type ExecutionPlanRequest struct {
	Plan               []scanstate.PlanEntry
	FilteredCategories []string
	VolumeName         string
}

func (a *Activities) RunExecutionPlan(ctx context.Context, req ExecutionPlanRequest) ([]scanstate.CategoryResult, error) {
	coordinator := execution.Coordinator{Runner: a.Runner}
	return coordinator.Run(ctx, req.Plan, req.FilteredCategories, req.VolumeName), nil
}

type PersistRequest struct {
	State scanstate.ScanState
}

func (a *Activities) PersistResult(ctx context.Context, req PersistRequest) (scanstate.CleanupStatus, error) {
	return cleanup.PersistResult(ctx, a.Store, req.State)
}

func (a *Activities) RemoveVolume(ctx context.Context, volumeName string) error {
	return cleanup.RemoveVolume(ctx, a.Sandbox, volumeName)
}

// parseFileListing reads "path\tsize" lines emitted by the sandboxed
// counting job's find-files recipe.
func parseFileListing(stdout string) map[string]int64 {
	files := map[string]int64{}
	for _, line := range strings.Split(stdout, "\n") {
		parts := strings.SplitN(strings.TrimSpace(line), "\t", 2)
		if len(parts) != 2 {
			continue
		}
		size, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			continue
		}
		files[parts[0]] = size
	}
	return files
}

type NotifyRequest struct {
	ScanID  string
	Event   string
	Payload map[string]any
}

func (a *Activities) EmitAudit(ctx context.Context, req NotifyRequest) error {
	return a.Notify.Emit(ctx, req.ScanID, req.Event, req.Payload)
}
