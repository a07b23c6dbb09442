// Package validation implements the Validation/Init Subgraph's Request
// Validator and State Initializer; GitHub Auth itself lives in internal/ghauth.
package validation

import (
	"github.com/SafwanAhmed08/DeplAI/internal/ghauth"
)

// Result is the Request Validator's outcome.
type Result struct {
	Valid bool
	Owner string
	Repo  string
	Error string
}

// ValidateRequest parses the URL and enforces http(s) scheme, non-empty
// host, and the github.com hosting restriction.
func ValidateRequest(repoURL string) Result {
	owner, repo, err := ghauth.ValidateRepoURL(repoURL)
	if err != nil {
		return Result{Valid: false, Error: err.Error()}
	}
	return Result{Valid: true, Owner: owner, Repo: repo}
}

// ScanRecord is the State Initializer's repo_metadata.scan_record value.
type ScanRecord struct {
	ScanID string `json:"scan_id"`
	Status string `json:"status"`
}

func InitializeScanRecord(scanID string) ScanRecord {
	return ScanRecord{ScanID: scanID, Status: "initialized"}
}
