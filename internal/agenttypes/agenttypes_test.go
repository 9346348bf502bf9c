package agenttypes

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultRegistryCoversCanonicalModes(t *testing.T) {
	r := Default()
	require.Len(t, r.Names(), 8)

	react, ok := r.Get("Explore")
	require.True(t, ok)
	require.Equal(t, ModeReAct, react.Mode)

	direct, ok := r.Get("Reflect")
	require.True(t, ok)
	require.Equal(t, ModeDirect, direct.Mode)
	require.Empty(t, direct.Tools, "a no-tool agent type must declare no tools")

	ooda, ok := r.Get("OODASubagent")
	require.True(t, ok)
	require.Equal(t, ModeOODA, ooda.Mode)

	_, ok = r.Get("NoSuchType")
	require.False(t, ok)
}

func TestLoadParsesTOMLTable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent_types.toml")
	content := `
[[agent_type]]
name = "Custom"
mode = "react"
tools = ["read_file"]
max_cycles = 10
description = "a custom agent type"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	r, err := Load(path)
	require.NoError(t, err)
	s, ok := r.Get("Custom")
	require.True(t, ok)
	require.Equal(t, ModeReAct, s.Mode)
	require.Equal(t, []string{"read_file"}, s.Tools)
	require.Equal(t, 10, s.MaxCycles)
}
