package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nvandessel/episim/internal/logging"
	"github.com/nvandessel/episim/internal/mcp"
	"github.com/nvandessel/episim/internal/store"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored runs over MCP (stdio)",
		Long: `Serve stored runs to AI agents over the Model Context Protocol.

The server speaks MCP on stdin/stdout and offers the tools episim_runs,
episim_reports, episim_infections and episim_restrictions. Tool calls are
appended to mcp_audit.jsonl next to the database.

Example MCP client configuration:
  {"mcpServers": {"episim": {"command": "episim", "args": ["serve"]}}}`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _ := cmd.Flags().GetString("db")
			level, _ := cmd.Flags().GetString("log-level")

			if dbPath == "" {
				p, err := store.DefaultPath()
				if err != nil {
					return fmt.Errorf("failed to get default database path: %w", err)
				}
				dbPath = p
			}

			// stdout carries the protocol
			logger := logging.NewLogger(level, os.Stderr)
			srv, err := mcp.NewServer(&mcp.Config{
				Name:     "episim",
				Version:  version,
				DBPath:   dbPath,
				AuditDir: filepath.Dir(dbPath),
				Logger:   logger,
			})
			if err != nil {
				return err
			}
			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().String("db", "", "Run database (default ~/.episim/runs.db)")
	cmd.Flags().String("log-level", "info", "Log level on stderr: info, debug or trace")

	return cmd
}
