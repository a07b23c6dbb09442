package sandbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"

	"github.com/SafwanAhmed08/DeplAI/internal/redact"
)

// Failure modes surfaced by Run.
var (
	ErrExecutorMissing = errors.New("sandbox executor unavailable")
	ErrTimeout          = errors.New("sandbox command timed out")
)

const (
	maxCPUNanos   = 1_000_000_000 // CPU <= 1 unit
	maxMemoryBytes = 512 << 20    // memory <= 512 MiB
	maxPIDs        = 128
	maxTmpfsBytes  = 64 << 20 // scratch tmpfs cap
)

// RunRequest describes one sandboxed command invocation.
type RunRequest struct {
	Image         string
	Argv          []string
	Entrypoint    []string
	Env           []string
	VolumeName    string
	MountPath     string // default /workspace
	ReadOnlyMount bool   // default true; only the Cloner sets this false
	NetworkNone   bool   // default true
	Timeout       time.Duration
}

// RunResult is the sandbox's output contract.
type RunResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Run executes a command inside an ephemeral, capped container bound to the
// named workspace volume, enforcing a wall-clock timeout and passing all
// returned text through the secret redactor.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	if c == nil || c.api == nil {
		return RunResult{}, ErrExecutorMissing
	}
	mountPath := req.MountPath
	if mountPath == "" {
		mountPath = "/workspace"
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	readOnly := true
	if !req.ReadOnlyMount {
		readOnly = false
	}
	networkMode := container.NetworkMode("none")
	if !req.NetworkNone {
		networkMode = "bridge"
	}

	mounts := []mount.Mount{
		{
			Type:     mount.TypeVolume,
			Source:   req.VolumeName,
			Target:   mountPath,
			ReadOnly: readOnly,
		},
		{
			Type: mount.TypeTmpfs,
			Target: "/tmp",
			TmpfsOptions: &mount.TmpfsOptions{
				SizeBytes: maxTmpfsBytes,
			},
		},
	}

	pidsLimit := int64(maxPIDs)
	cfg := &container.Config{
		Image:      req.Image,
		Cmd:        req.Argv,
		Entrypoint: req.Entrypoint,
		Env:        req.Env,
		WorkingDir: mountPath,
	}
	hostCfg := &container.HostConfig{
		Mounts:          mounts,
		ReadonlyRootfs:  true,
		NetworkMode:     networkMode,
		AutoRemove:      false,
		RestartPolicy:   container.RestartPolicy{Name: "no"},
		SecurityOpt:     []string{"no-new-privileges"},
		Resources: container.Resources{
			NanoCPUs:  maxCPUNanos,
			Memory:    maxMemoryBytes,
			PidsLimit: &pidsLimit,
		},
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := c.runContainer(runCtx, cfg, hostCfg)
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			return RunResult{}, ErrTimeout
		}
		return RunResult{}, fmt.Errorf("sandbox run: %w", err)
	}

	return RunResult{
		ExitCode: result.ExitCode,
		Stdout:   redact.Redact(result.Stdout),
		Stderr:   redact.Redact(result.Stderr),
	}, nil
}
