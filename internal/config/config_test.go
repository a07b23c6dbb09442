package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DEPLAI_SCAN_DB_PATH", "")
	t.Setenv("DEPLAI_HITL_TIMEOUT_SECONDS", "")
	t.Setenv("DEPLAI_HITL_DEFAULT_DECISION", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "./data/scans.db", cfg.ScanDBPath)
	require.Equal(t, 60, cfg.HITLTimeoutSeconds)
	require.Equal(t, "reject", cfg.HITLDefaultDecision)
}

func TestLoadRejectsBadTimeout(t *testing.T) {
	t.Setenv("DEPLAI_HITL_TIMEOUT_SECONDS", "not-a-number")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsBadDefaultDecision(t *testing.T) {
	t.Setenv("DEPLAI_HITL_DEFAULT_DECISION", "maybe")
	_, err := Load()
	require.Error(t, err)
}
