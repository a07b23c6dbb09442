// Package sandbox runs commands inside ephemeral, resource-capped Docker
// containers bound to a scan's workspace volume.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// Client is a thin wrapper over the Docker Engine API used to provision
// workspace volumes and run ephemeral, capped containers.
type Client struct {
	api *client.Client
}

// NewClient dials Docker using the standard environment variables, with an
// optional explicit host override.
func NewClient(dockerHost string) (*Client, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if strings.TrimSpace(dockerHost) != "" {
		opts = []client.Opt{client.WithHost(dockerHost), client.WithAPIVersionNegotiation()}
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := cli.Ping(ctx); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("%w: %v", ErrExecutorMissing, err)
	}
	return &Client{api: cli}, nil
}

func (c *Client) Close() error {
	if c == nil || c.api == nil {
		return nil
	}
	return c.api.Close()
}

// EnsureVolume provisions a named, labeled volume if it does not already
// exist and returns its name.
func (c *Client) EnsureVolume(ctx context.Context, name string, labels map[string]string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", errors.New("volume name required")
	}
	list, err := c.api.VolumeList(ctx, volume.ListOptions{
		Filters: filters.NewArgs(filters.Arg("name", name)),
	})
	if err != nil {
		return "", err
	}
	for _, item := range list.Volumes {
		if item.Name == name {
			return item.Name, nil
		}
	}
	resp, err := c.api.VolumeCreate(ctx, volume.CreateOptions{Name: name, Labels: labels})
	if err != nil {
		return "", err
	}
	return resp.Name, nil
}

// RemoveVolume removes a volume, treating "not found" as success.
func (c *Client) RemoveVolume(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("volume name required")
	}
	err := c.api.VolumeRemove(ctx, name, true)
	if err == nil || client.IsErrNotFound(err) {
		return nil
	}
	return err
}

func (c *Client) createContainer(ctx context.Context, cfg *container.Config, hostCfg *container.HostConfig) (string, error) {
	resp, err := c.api.ContainerCreate(ctx, cfg, hostCfg, nil, nil, "")
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *Client) removeContainer(ctx context.Context, id string) {
	_ = c.api.ContainerRemove(ctx, id, container.RemoveOptions{Force: true, RemoveVolumes: true})
}

// runResult is what a single ephemeral container invocation produced.
type runResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// runContainer creates, starts, waits on (bounded by ctx), collects output
// from, and removes a single ephemeral container.
func (c *Client) runContainer(ctx context.Context, cfg *container.Config, hostCfg *container.HostConfig) (runResult, error) {
	id, err := c.createContainer(ctx, cfg, hostCfg)
	if err != nil {
		return runResult{}, fmt.Errorf("create container: %w", err)
	}
	defer c.removeContainer(context.Background(), id)

	if err := c.api.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return runResult{}, fmt.Errorf("start container: %w", err)
	}

	statusCh, errCh := c.api.ContainerWait(ctx, id, container.WaitConditionNotRunning)
	var exitCode int
	select {
	case err := <-errCh:
		if err != nil {
			if ctx.Err() != nil {
				return runResult{}, ErrTimeout
			}
			return runResult{}, fmt.Errorf("wait container: %w", err)
		}
	case status := <-statusCh:
		exitCode = int(status.StatusCode)
	case <-ctx.Done():
		return runResult{}, ErrTimeout
	}

	logsReader, err := c.api.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return runResult{ExitCode: exitCode}, fmt.Errorf("fetch logs: %w", err)
	}
	defer logsReader.Close()

	var stdout, stderr strings.Builder
	if _, err := stdcopy.StdCopy(&stdout, &stderr, logsReader); err != nil && !errors.Is(err, context.Canceled) {
		return runResult{ExitCode: exitCode}, fmt.Errorf("demux logs: %w", err)
	}

	return runResult{ExitCode: exitCode, Stdout: stdout.String(), Stderr: stderr.String()}, nil
}
