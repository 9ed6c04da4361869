package mcp

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/smaliref/internal/config"
	"github.com/standardbeagle/smaliref/internal/indexing"
	"github.com/standardbeagle/smaliref/internal/query"
	"github.com/standardbeagle/smaliref/internal/version"
)

// Server exposes reference search over MCP.
type Server struct {
	cfg              *config.Config
	service          *query.Service
	indexer          *AutoIndexingManager
	diagnosticLogger *DiagnosticLogger
	indexTimeout     time.Duration

	server *mcp.Server
}

// NewServer creates an MCP server over loader's corpus and starts loading it
// in the background. Tool calls wait for the load to finish.
func NewServer(cfg *config.Config, loader *indexing.Loader, logger *DiagnosticLogger) (*Server, error) {
	if cfg == nil || loader == nil {
		return nil, errors.New("mcp server needs a config and a loader")
	}
	if logger == nil {
		logger = NoOpLogger
	}

	s := &Server{
		cfg:              cfg,
		service:          query.NewService(cfg, loader.Corpus()),
		diagnosticLogger: logger,
		indexTimeout:     DefaultIndexingTimeout,
		indexer: NewAutoIndexingManager(loader, cfg.Index.Watch,
			time.Duration(cfg.Index.WatchDebounceMs)*time.Millisecond, logger),
	}
	logger.Printf("project root configured: %s", cfg.Project.Root)

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: version.Info(),
	}, nil)
	s.registerTools()

	s.indexer.start()
	return s, nil
}

// recoverFromPanic turns a handler panic or error into an error result so
// one bad request cannot take the session down.
func (s *Server) recoverFromPanic(operation string, handler func() (*mcp.CallToolResult, error)) (result *mcp.CallToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.diagnosticLogger.Errorf("panic in %s: %v\n%s", operation, r, debug.Stack())
			result, err = createErrorResponse(operation, fmt.Errorf("internal error: %v", r))
		}
	}()

	result, err = handler()
	if err != nil {
		s.diagnosticLogger.Errorf("%s: %v", operation, err)
		return createErrorResponse(operation, err)
	}
	return result, nil
}

// Start serves MCP on stdio until ctx is done or the client disconnects.
func (s *Server) Start(ctx context.Context) error {
	s.diagnosticLogger.Printf("starting %s with stdio transport", version.FullInfo())
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Connect serves one session over transport. It is used for in-process
// clients.
func (s *Server) Connect(ctx context.Context, transport mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, transport, nil)
}

// Shutdown stops background loading and watching.
func (s *Server) Shutdown(ctx context.Context) error {
	s.diagnosticLogger.Printf("shutting down MCP server")

	done := make(chan error, 1)
	go func() { done <- s.indexer.Close() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
