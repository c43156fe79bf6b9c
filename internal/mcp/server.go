// Package mcp serves stored simulation runs over the Model Context
// Protocol, so agents can list runs and query their reports.
package mcp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/episim/internal/logging"
	"github.com/nvandessel/episim/internal/ratelimit"
	"github.com/nvandessel/episim/internal/store"
)

// Server exposes a run database as MCP tools.
type Server struct {
	server   *sdk.Server
	store    *store.SQLiteStore
	limiters ratelimit.ToolLimiters
	audit    *AuditLogger
	logger   *slog.Logger
}

// Config holds server configuration.
type Config struct {
	Name    string // server name, e.g. "episim"
	Version string
	DBPath  string // run database
	// AuditDir receives mcp_audit.jsonl when set.
	AuditDir string
	Logger   *slog.Logger
}

// NewServer opens the run database and registers the tools.
func NewServer(cfg *Config) (*Server, error) {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewLogger("info", io.Discard)
	}

	s := &Server{
		store:    st,
		limiters: ratelimit.NewToolLimiters(),
		logger:   logger,
	}
	if cfg.AuditDir != "" {
		s.audit = NewAuditLogger(cfg.AuditDir)
	}

	s.server = sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {
			logger.Debug("mcp client initialized")
		},
	})
	s.registerTools()
	return s, nil
}

// Run serves over stdio until the client disconnects, the context is
// cancelled or the process receives an interrupt.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	s.logger.Info("mcp server starting", "db", s.store.Path())
	err := s.server.Run(ctx, &sdk.StdioTransport{})
	if cerr := s.Close(); err == nil {
		err = cerr
	}
	return err
}

// Close releases the database and the audit log.
func (s *Server) Close() error {
	if err := s.audit.Close(); err != nil {
		s.logger.Warn("closing audit log", "error", err)
	}
	return s.store.Close()
}
