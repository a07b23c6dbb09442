package validation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateRequestAcceptsGitHubURL(t *testing.T) {
	result := ValidateRequest("https://github.com/acme/widgets")
	require.True(t, result.Valid)
	require.Equal(t, "acme", result.Owner)
	require.Equal(t, "widgets", result.Repo)
}

func TestValidateRequestRejectsNonGitHubHost(t *testing.T) {
	result := ValidateRequest("https://example.com/acme/widgets")
	require.False(t, result.Valid)
	require.NotEmpty(t, result.Error)
}

func TestInitializeScanRecord(t *testing.T) {
	record := InitializeScanRecord("scan-1")
	require.Equal(t, "scan-1", record.ScanID)
	require.Equal(t, "initialized", record.Status)
}
