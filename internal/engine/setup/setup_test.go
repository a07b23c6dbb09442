package setup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestVolumeNameSanitizesScanID(t *testing.T) {
	require.Equal(t, "deplai_code_abc_123", VolumeName("abc/123"))
}

func TestCloneTimeoutClampsToFloor(t *testing.T) {
	require.Equal(t, cloneBaseTimeout, CloneTimeout(10))
}

func TestCloneTimeoutClampsToCeiling(t *testing.T) {
	require.Equal(t, cloneMaxTimeout, CloneTimeout(100_000))
}

func TestCloneTimeoutScalesWithSize(t *testing.T) {
	require.Equal(t, cloneBaseTimeout+100*time.Second, CloneTimeout(5_000))
}

func TestClassifyExtensionKnownAndUnknown(t *testing.T) {
	require.Equal(t, "go", ClassifyExtension(".go"))
	require.Equal(t, "other", ClassifyExtension(".xyz"))
}

func TestNewCodebaseStatsAggregatesByLanguage(t *testing.T) {
	stats := NewCodebaseStats(map[string]int64{
		"main.go":   100,
		"app.py":    50,
		"README.md": 10,
	})
	require.Equal(t, 3, stats.TotalFiles)
	require.Equal(t, int64(160), stats.TotalSizeBytes)
	require.Equal(t, 1, stats.LanguageBreakdown["go"])
	require.Equal(t, 1, stats.LanguageBreakdown["python"])
	require.Equal(t, 1, stats.LanguageBreakdown["other"])
}

func TestRequiresHITLLatchesAboveThreshold(t *testing.T) {
	require.True(t, RequiresHITL(CodebaseStats{TotalSizeBytes: sizeCheckThresholdBytes + 1}))
	require.False(t, RequiresHITL(CodebaseStats{TotalSizeBytes: sizeCheckThresholdBytes}))
}

func TestLoadMemoryReturnsPlaceholder(t *testing.T) {
	m := LoadMemory()
	require.Equal(t, 0, m.PreviousFindingsCount)
	require.Equal(t, "none", m.LastScanStatus)
}
