package main

import (
	"github.com/spf13/cobra"

	"github.com/dusk-indust/pacer/internal/coach"
	"github.com/dusk-indust/pacer/internal/config"
	"github.com/dusk-indust/pacer/internal/llm"
	"github.com/dusk-indust/pacer/internal/logging"
	"github.com/dusk-indust/pacer/internal/mcptools"
	"github.com/dusk-indust/pacer/internal/runstore"
)

var serveFlags struct {
	addr       string
	configPath string
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve-mcp",
		Short: "Serve the workflow as MCP tools",
		Long: `Starts an MCP server exposing run_workflow, get_run and list_runs.

Without --addr the server speaks over stdin/stdout. With --addr it serves the
streamable HTTP transport until interrupted. Runs are kept in memory for the
lifetime of the process.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	f := cmd.Flags()
	f.StringVar(&serveFlags.addr, "addr", "", "Listen address for streamable HTTP (default: stdio)")
	f.StringVarP(&serveFlags.configPath, "config", "c", "", "YAML file with limits, timeouts and prompt overrides for every run")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	base := config.Default()
	if serveFlags.configPath != "" {
		loaded, err := config.Load(serveFlags.configPath)
		if err != nil {
			return err
		}
		base = loaded
	}

	svc := mcptools.NewWorkflowService(runstore.New(), func(config.Config) llm.Provider {
		return coach.DemoProvider{}
	}, base)
	server := mcptools.NewServer(svc)

	logger := logging.New("mcp")
	if serveFlags.addr == "" {
		logger.Info("serving MCP over stdio")
		return mcptools.RunStdio(cmd.Context(), server)
	}
	logger.Info("serving MCP over HTTP", "addr", serveFlags.addr)
	return mcptools.RunHTTP(cmd.Context(), server, serveFlags.addr)
}
