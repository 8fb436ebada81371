package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// MCP clients supported by setup.
const (
	clientQwen   = "qwen"
	clientClaude = "claude"
	clientCursor = "cursor"
)

// SetupCmd configures MCP for various AI clients.
type SetupCmd struct {
	Qwen     bool   `help:"Configure for Qwen CLI"`
	Claude   bool   `help:"Configure for Claude Code"`
	Cursor   bool   `help:"Configure for Cursor"`
	Local    bool   `help:"Create project-local configuration"`
	Global   bool   `help:"Create global configuration"`
	Format   string `help:"Output format (json|text)" enum:"json,text" default:"json"`
	FilePath string `help:"Custom directory for the local configuration"`
}

// Run executes the setup command.
func (c *SetupCmd) Run(g *Globals) error {
	if c.Format != "json" && c.Format != "text" {
		return fmt.Errorf("invalid format: %s (must be json or text)", c.Format)
	}

	config := generateConfig(g.Config)

	// If no specific client is specified, output config to stdout
	if !c.Qwen && !c.Claude && !c.Cursor {
		return renderConfig(g.out(), config, c.Format)
	}

	if !c.Local && !c.Global {
		c.Local = true
	}

	for _, client := range []struct {
		name    string
		enabled bool
	}{
		{clientQwen, c.Qwen},
		{clientClaude, c.Claude},
		{clientCursor, c.Cursor},
	} {
		if !client.enabled {
			continue
		}
		if err := c.setupClient(g.out(), client.name, config); err != nil {
			return err
		}
	}
	return nil
}

func (c *SetupCmd) setupClient(w io.Writer, client string, config map[string]any) error {
	label := strings.ToUpper(client[:1]) + client[1:]

	if c.Global {
		globalPath := getGlobalConfigPath(client)
		if err := writeConfig(globalPath, config, c.Format); err != nil {
			return err
		}
		green.Fprintf(w, "✓ Created global %s MCP config at %s\n", label, globalPath)
	}

	if c.Local {
		localPath := getLocalConfigPath(".", client)
		if c.FilePath != "" {
			localPath = filepath.Join(c.FilePath, "mcp.json")
		}
		if err := writeConfig(localPath, config, c.Format); err != nil {
			return err
		}
		green.Fprintf(w, "✓ Created local %s MCP config at %s\n", label, localPath)
	}
	return nil
}

// generateConfig points the client at `sentinel mcp` with the active config
// file.
func generateConfig(configPath string) map[string]any {
	args := []string{"mcp"}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	return map[string]any{
		"mcpServers": map[string]any{
			"sentinel": map[string]any{
				"command": "sentinel",
				"args":    args,
			},
		},
	}
}

// Path helpers

func getLocalConfigPath(basePath, client string) string {
	return filepath.Join(basePath, getClientConfigDir(client), "mcp.json")
}

func getGlobalConfigPath(client string) string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = os.Getenv("HOME")
	}
	return filepath.Join(homeDir, getClientConfigDir(client), "global", "mcp.json")
}

func getClientConfigDir(client string) string {
	switch client {
	case clientClaude:
		return ".claude"
	case clientCursor:
		return ".cursor"
	default:
		return ".qwen"
	}
}

// Config writers

func renderConfig(w io.Writer, config map[string]any, format string) error {
	if format == "json" {
		content, err := json.MarshalIndent(config, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		_, err = fmt.Fprintln(w, string(content))
		return err
	}

	fmt.Fprintln(w, "# MCP configuration for Sentinel")
	fmt.Fprintln(w, "# Generated by sentinel setup")
	fmt.Fprintln(w)

	keys := make([]string, 0, len(config))
	for key := range config {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		value, _ := json.Marshal(config[key])
		fmt.Fprintf(w, "%s: %s\n", key, value)
	}
	return nil
}

func writeConfig(configPath string, config map[string]any, format string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	f, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := renderConfig(f, config, format); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
