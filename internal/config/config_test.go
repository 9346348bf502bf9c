package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 50000, cfg.CompactionThreshold)
	require.Equal(t, 60, cfg.TeammateIdleTimeout)
	require.Equal(t, 5, cfg.TeammatePollInterval)
	require.Equal(t, 50, cfg.TeammateWorkCap)
	require.Equal(t, ".sessions", cfg.SessionsRoot)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("DEEPSEEK_API_KEY", "sk-test-123")
	t.Setenv("TEAMMATE_WORK_CAP", "7")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "sk-test-123", cfg.DeepseekAPIKey)
	require.Equal(t, 7, cfg.TeammateWorkCap)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cortex.yaml")
	require.NoError(t, os.WriteFile(path, []byte("compaction_threshold: 1234\nsessions_root: custom-sessions\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 1234, cfg.CompactionThreshold)
	require.Equal(t, "custom-sessions", cfg.SessionsRoot)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
