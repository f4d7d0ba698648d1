package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dusk-indust/pacer/internal/config"
	"github.com/dusk-indust/pacer/internal/stages"
)

const (
	starterConfigFile  = "pacer.yaml"
	starterPromptsFile = "prompts.yaml"
)

// mcpConfig represents the structure of a .mcp.json file.
type mcpConfig struct {
	MCPServers map[string]json.RawMessage `json:"mcpServers"`
}

// pacerMCPEntry is the MCP server configuration for the pacer binary.
var pacerMCPEntry = json.RawMessage(`{
  "type": "stdio",
  "command": "pacer",
  "args": ["serve-mcp", "--config", "pacer.yaml"]
}`)

var initFlags struct {
	force bool
}

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [project-root]",
		Short: "Write a starter config, the prompt templates and the MCP entry",
		Long: `Creates pacer.yaml and prompts.yaml in the project root and registers
the pacer MCP server in .mcp.json. Existing files are left alone unless
--force is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) > 0 {
				root = args[0]
			}
			return runInit(cmd.OutOrStdout(), root, initFlags.force)
		},
	}
	cmd.Flags().BoolVar(&initFlags.force, "force", false, "Overwrite existing files and entries")
	return cmd
}

func runInit(w io.Writer, projectRoot string, force bool) error {
	abs, err := filepath.Abs(projectRoot)
	if err != nil {
		return fmt.Errorf("resolving project root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return err
	}

	starter := config.Default()
	starter.ActivityDir = "activities"
	starter.OutputDir = "pacer-out"
	starter.CustomPromptPath = starterPromptsFile
	if err := writeYAML(w, abs, starterConfigFile, starter, force); err != nil {
		return err
	}
	if err := writeYAML(w, abs, starterPromptsFile, stages.DefaultPrompts(), force); err != nil {
		return err
	}

	if err := mergeMCPConfig(w, filepath.Join(abs, ".mcp.json"), force); err != nil {
		return err
	}

	fmt.Fprintln(w, "\nSetup complete. Put activity exports in ./activities and run 'pacer run -c pacer.yaml'.")
	return nil
}

func writeYAML(w io.Writer, dir, name string, v any, force bool) error {
	dest := filepath.Join(dir, name)
	if !force {
		if _, err := os.Stat(dest); err == nil {
			fmt.Fprintf(w, "  skipped %s (exists, use --force to overwrite)\n", dotRelative(dir, dest))
			return nil
		}
	}

	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", name, err)
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	fmt.Fprintf(w, "  created %s\n", dotRelative(dir, dest))
	return nil
}

// mergeMCPConfig creates or merges the pacer entry into .mcp.json.
func mergeMCPConfig(w io.Writer, mcpPath string, force bool) error {
	var cfg mcpConfig

	data, err := os.ReadFile(mcpPath)
	if err == nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("parsing %s: %w", mcpPath, err)
		}
	}

	if cfg.MCPServers == nil {
		cfg.MCPServers = make(map[string]json.RawMessage)
	}

	if _, exists := cfg.MCPServers["pacer"]; exists && !force {
		fmt.Fprintln(w, "  skipped .mcp.json pacer entry (exists, use --force to overwrite)")
		return nil
	}
	cfg.MCPServers["pacer"] = pacerMCPEntry

	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling .mcp.json: %w", err)
	}
	if err := os.WriteFile(mcpPath, append(out, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", mcpPath, err)
	}

	action := "created"
	if data != nil {
		action = "updated"
	}
	fmt.Fprintf(w, "  %s .mcp.json with pacer MCP server\n", action)
	return nil
}

// dotRelative returns a display path relative to base, prefixed with "./".
func dotRelative(base, path string) string {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return path
	}
	return "./" + rel
}
