package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readMCPConfig(t *testing.T, path string) map[string]any {
	t.Helper()
	content, err := os.ReadFile(path)
	require.NoError(t, err)

	var loaded map[string]any
	require.NoError(t, json.Unmarshal(content, &loaded))
	return loaded
}

func TestSetupCmd_Run(t *testing.T) {
	for _, tc := range []struct {
		name string
		cmd  SetupCmd
		dir  string
	}{
		{"Qwen", SetupCmd{Qwen: true, Format: "json"}, ".qwen"},
		{"Claude", SetupCmd{Claude: true, Local: true, Format: "json"}, ".claude"},
		{"Cursor", SetupCmd{Cursor: true, Local: true, Format: "json"}, ".cursor"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			t.Chdir(tmpDir)

			var out bytes.Buffer
			require.NoError(t, tc.cmd.Run(&Globals{Config: "/etc/sentinel.yaml", stdout: &out}))

			loaded := readMCPConfig(t, filepath.Join(tmpDir, tc.dir, "mcp.json"))
			servers := loaded["mcpServers"].(map[string]any)
			sentinel := servers["sentinel"].(map[string]any)
			assert.Equal(t, "sentinel", sentinel["command"])
			assert.Equal(t, []any{"mcp", "--config", "/etc/sentinel.yaml"}, sentinel["args"])
			assert.Contains(t, out.String(), "Created local")
		})
	}

	t.Run("Global", func(t *testing.T) {
		tmpHome := t.TempDir()
		t.Setenv("HOME", tmpHome)

		cmd := &SetupCmd{Claude: true, Global: true, Format: "json"}
		require.NoError(t, cmd.Run(&Globals{stdout: &bytes.Buffer{}}))

		_, err := os.Stat(filepath.Join(tmpHome, ".claude", "global", "mcp.json"))
		assert.NoError(t, err)
	})

	t.Run("CustomFilePath", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "custom")
		cmd := &SetupCmd{Cursor: true, FilePath: dir, Format: "text"}
		require.NoError(t, cmd.Run(&Globals{stdout: &bytes.Buffer{}}))

		content, err := os.ReadFile(filepath.Join(dir, "mcp.json"))
		require.NoError(t, err)
		assert.Contains(t, string(content), "# MCP configuration for Sentinel")
		assert.Contains(t, string(content), `mcpServers: {"sentinel"`)
	})

	t.Run("DefaultPrintsToStdout", func(t *testing.T) {
		var out bytes.Buffer
		cmd := &SetupCmd{Format: "json"}
		require.NoError(t, cmd.Run(&Globals{stdout: &out}))

		var loaded map[string]any
		require.NoError(t, json.Unmarshal(out.Bytes(), &loaded))
		assert.Contains(t, loaded, "mcpServers")
	})

	t.Run("InvalidFormat", func(t *testing.T) {
		cmd := &SetupCmd{Qwen: true, Format: "invalid"}
		assert.Error(t, cmd.Run(&Globals{stdout: &bytes.Buffer{}}))
	})
}

func TestGenerateConfig(t *testing.T) {
	t.Parallel()

	config := generateConfig("")
	sentinel := config["mcpServers"].(map[string]any)["sentinel"].(map[string]any)
	assert.Equal(t, []string{"mcp"}, sentinel["args"])
}

func TestConfigPaths(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	assert.Equal(t, filepath.Join(tmpDir, ".qwen", "mcp.json"), getLocalConfigPath(tmpDir, clientQwen))
	assert.Equal(t, ".qwen", getClientConfigDir(clientQwen))
	assert.Equal(t, ".claude", getClientConfigDir(clientClaude))
	assert.Equal(t, ".cursor", getClientConfigDir(clientCursor))
}

func TestWriteConfig_CreatesDirectory(t *testing.T) {
	t.Parallel()

	configPath := filepath.Join(t.TempDir(), "nested", "dir", "config.json")
	require.NoError(t, writeConfig(configPath, map[string]any{"test": "value"}, "json"))
	assert.Equal(t, map[string]any{"test": "value"}, readMCPConfig(t, configPath))
}
