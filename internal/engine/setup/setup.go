// Package setup implements the Setup Subgraph: Volume Creator, Cloner,
// Codebase Stats, Memory Loader, and Size Checker.
package setup

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/SafwanAhmed08/DeplAI/internal/sandbox"
)

// sizeCheckThresholdBytes latches requires_hitl when total_size_bytes
// exceeds this.
const sizeCheckThresholdBytes = 20 * 1024 * 1024

// cloneBaseTimeout and cloneMaxTimeout bound the dynamic clone timeout.
const (
	cloneBaseTimeout = 120 * time.Second
	cloneMaxTimeout  = 600 * time.Second
)

var unsafeVolumeChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)

// VolumeName derives the per-scan workspace volume name.
func VolumeName(scanID string) string {
	return "deplai_code_" + unsafeVolumeChars.ReplaceAllString(scanID, "_")
}

// CreateVolume provisions the named workspace volume.
func CreateVolume(ctx context.Context, client *sandbox.Client, scanID string) (string, error) {
	name := VolumeName(scanID)
	if _, err := client.EnsureVolume(ctx, name, map[string]string{"deplai.scan_id": scanID}); err != nil {
		return "", fmt.Errorf("volume creator: %w", err)
	}
	return name, nil
}

// cloneImage is the sandboxed git client used to populate the workspace
// volume; kept as a constant so the Execution/Tool catalogs and the Cloner
// share the same "named recipe" convention.
const cloneImage = "deplai/git-cloner:latest"

// CloneTimeout implements the dynamic timeout: base 120s + (repo_size_kB /
// 50), clamped to [120s, 600s].
func CloneTimeout(repoSizeKB int) time.Duration {
	timeout := cloneBaseTimeout + time.Duration(repoSizeKB/50)*time.Second
	if timeout < cloneBaseTimeout {
		timeout = cloneBaseTimeout
	}
	if timeout > cloneMaxTimeout {
		timeout = cloneMaxTimeout
	}
	return timeout
}

// ErrorRecord is one structured clone/setup failure entry.
type ErrorRecord struct {
	Component string `json:"component"`
	Code      string `json:"code"`
	Reason    string `json:"reason"`
	ExitCode  int    `json:"exit_code"`
	Stderr    string `json:"stderr"`
}

// CloneRepo clones repoURL into volumeName with depth-1, single-branch,
// no-tags, no-submodules. If token is set, it retries once with an
// Authorization extra-header on failure, then once more without
// credentials to tolerate stale tokens against public repos.
func CloneRepo(ctx context.Context, client *sandbox.Client, volumeName, repoURL, token string, repoSizeKB int) (sandbox.RunResult, []ErrorRecord) {
	timeout := CloneTimeout(repoSizeKB)
	argv := []string{"clone", "--depth", "1", "--single-branch", "--no-tags", repoURL, "/workspace"}

	var errs []ErrorRecord

	if strings.TrimSpace(token) != "" {
		authed := append([]string{"-c", "http.extraHeader=Authorization: Bearer " + token}, argv...)
		result, err := client.Run(ctx, sandbox.RunRequest{
			Image:       cloneImage,
			Entrypoint:  []string{"git"},
			Argv:        authed,
			VolumeName:  volumeName,
			NetworkNone: false,
			Timeout:     timeout,
		})
		if err == nil && result.ExitCode == 0 {
			return result, nil
		}
		errs = append(errs, ErrorRecord{
			Component: "cloner", Code: "credentialed_clone_failed",
			Reason: runErrReason(err), ExitCode: result.ExitCode, Stderr: result.Stderr,
		})
	}

	result, err := client.Run(ctx, sandbox.RunRequest{
		Image:       cloneImage,
		Entrypoint:  []string{"git"},
		Argv:        argv,
		VolumeName:  volumeName,
		NetworkNone: false,
		Timeout:     timeout,
	})
	if err != nil || result.ExitCode != 0 {
		errs = append(errs, ErrorRecord{
			Component: "cloner", Code: "clone_failed",
			Reason: runErrReason(err), ExitCode: result.ExitCode, Stderr: result.Stderr,
		})
	}
	return result, errs
}

func runErrReason(err error) string {
	if err == nil {
		return "non_zero_exit"
	}
	return err.Error()
}

// CodebaseStats is the Codebase Stats node's output.
type CodebaseStats struct {
	TotalFiles        int            `json:"total_files"`
	TotalSizeBytes    int64          `json:"total_size_bytes"`
	LanguageBreakdown map[string]int `json:"language_breakdown"`
}

var extensionLanguage = map[string]string{
	".py": "python", ".ts": "typescript", ".tsx": "typescript",
	".js": "javascript", ".jsx": "javascript",
	".java": "java", ".go": "go", ".rs": "rust",
}

// languageBuckets is the fixed output vocabulary for language_breakdown.
var languageBuckets = []string{"python", "typescript", "javascript", "java", "go", "rust", "other"}

// ClassifyExtension maps a file extension to one of the fixed language
// buckets.
func ClassifyExtension(ext string) string {
	if lang, ok := extensionLanguage[strings.ToLower(ext)]; ok {
		return lang
	}
	return "other"
}

// NewCodebaseStats folds a flat file listing (path, size) into stats; the
// counting job itself runs inside the sandbox (a shell find+wc recipe), this
// is the host-side fold over its reported output.
func NewCodebaseStats(files map[string]int64) CodebaseStats {
	breakdown := map[string]int{}
	for _, lang := range languageBuckets {
		breakdown[lang] = 0
	}
	var totalBytes int64
	for path, size := range files {
		ext := ""
		if i := strings.LastIndex(path, "."); i >= 0 {
			ext = path[i:]
		}
		breakdown[ClassifyExtension(ext)]++
		totalBytes += size
	}
	return CodebaseStats{
		TotalFiles:        len(files),
		TotalSizeBytes:    totalBytes,
		LanguageBreakdown: breakdown,
	}
}

// MemoryLoaderResult is the Memory Loader's placeholder output; prior-scan
// context retrieval is out of scope.
type MemoryLoaderResult struct {
	PreviousFindingsCount int    `json:"previous_findings_count"`
	LastScanStatus        string `json:"last_scan_status"`
}

func LoadMemory() MemoryLoaderResult {
	return MemoryLoaderResult{PreviousFindingsCount: 0, LastScanStatus: "none"}
}

// RequiresHITL latches true when total_size_bytes exceeds the threshold.
func RequiresHITL(stats CodebaseStats) bool {
	return stats.TotalSizeBytes > sizeCheckThresholdBytes
}
