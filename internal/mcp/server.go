package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/vecindex/internal/config"
	"github.com/dshills/vecindex/internal/embedder"
	"github.com/dshills/vecindex/internal/identity"
	"github.com/dshills/vecindex/internal/indexer"
	"github.com/dshills/vecindex/internal/project"
	"github.com/dshills/vecindex/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "vecindex"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Options configures a Server.
type Options struct {
	// GlobalConfig is passed to config.Load as the global file path.
	GlobalConfig string
	// Registry resolves embedding functions. Defaults to the built-ins.
	Registry *embedder.Registry
	// Logger must not write to stdout, which carries the protocol.
	Logger *slog.Logger
	// Owner overrides the current user and host.
	Owner *identity.Owner
}

// cachedProject is one project loaded by the server.
type cachedProject struct {
	*project.Project
	lock indexer.IndexLock
}

// Server wraps the MCP server with a cache of loaded projects. A project's
// config, store and embedder are read on first use and kept until the
// reload tool drops them.
type Server struct {
	mcp      *server.MCPServer
	registry *embedder.Registry
	logger   *slog.Logger
	owner    identity.Owner
	global   string

	mu       sync.Mutex
	projects map[string]*cachedProject
	// stores are shared by every project using the same database file.
	stores map[string]*storage.SQLiteStore
}

// NewServer creates a new MCP server instance
func NewServer(opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	registry := opts.Registry
	if registry == nil {
		registry = embedder.NewRegistry(logger)
	}

	var owner identity.Owner
	if opts.Owner != nil {
		owner = *opts.Owner
	} else {
		o, err := identity.CurrentOwner()
		if err != nil {
			return nil, err
		}
		owner = o
	}

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false)),
		registry: registry,
		logger:   logger,
		owner:    owner,
		global:   opts.GlobalConfig,
		projects: map[string]*cachedProject{},
		stores:   map[string]*storage.SQLiteStore{},
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}
	return s, nil
}

// Serve runs the protocol over in and out until ctx is cancelled or in is
// closed, then shuts the server down.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	defer func() {
		if err := s.Close(context.WithoutCancel(ctx)); err != nil {
			s.logger.Error("shutdown failed", "error", err)
		}
	}()

	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	err := stdio.Listen(ctx, in, out)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Close removes this user's empty collections from every open store and
// releases all projects and stores.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for root, p := range s.projects {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close %s: %w", root, err))
		}
		delete(s.projects, root)
	}
	for path, store := range s.stores {
		removed, err := identity.Clean(ctx, store, s.owner, true)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to clean %s: %w", path, err))
		}
		for _, r := range removed {
			s.logger.Info("removed empty collection", "collection", r.Collection, "path", r.Path)
		}
		if err := store.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(s.stores, path)
	}
	return errors.Join(errs...)
}

// project returns the cached project rooted at root, loading it on first
// use.
func (s *Server) project(root string) (*cachedProject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(root)
}

// acquire returns the project with its sync lock held. Taking the lock
// under s.mu keeps reload from closing the project in between. The caller
// releases p.lock.
func (s *Server) acquire(root string) (*cachedProject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.loadLocked(root)
	if err != nil {
		return nil, err
	}
	if !p.lock.TryAcquire() {
		return nil, indexer.ErrSyncInProgress
	}
	return p, nil
}

// loadLocked is project with s.mu held.
func (s *Server) loadLocked(root string) (*cachedProject, error) {
	if p, ok := s.projects[root]; ok {
		return p, nil
	}

	cfg, err := config.Load(config.Options{ProjectRoot: root, GlobalPath: s.global})
	if err != nil {
		return nil, err
	}

	store, ok := s.stores[cfg.DBFile()]
	if !ok {
		store, err = project.OpenStore(cfg)
		if err != nil {
			return nil, err
		}
		s.stores[cfg.DBFile()] = store
	}

	emb, err := project.NewEmbedder(cfg, s.registry)
	if err != nil {
		return nil, err
	}

	p := &cachedProject{Project: project.New(cfg, store, emb, s.owner, s.logger)}
	s.projects[root] = p
	s.logger.Info("project loaded", "project", root, "db", cfg.DBFile(), "embedding_function", cfg.EmbeddingFunction)
	return p, nil
}

// reload drops the cached project so the next call re-reads its config.
// It reports whether anything was cached.
func (s *Server) reload(root string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[root]
	if !ok {
		return false, nil
	}
	if p.lock.Held() {
		return true, indexer.ErrSyncInProgress
	}
	delete(s.projects, root)
	return true, p.Close()
}

// registerTools registers all MCP tools
func (s *Server) registerTools() error {
	s.mcp.AddTool(vectoriseTool(), s.handleVectorise)
	s.mcp.AddTool(updateTool(), s.handleUpdate)
	s.mcp.AddTool(queryTool(), s.handleQuery)
	s.mcp.AddTool(reloadTool(), s.handleReload)
	return nil
}
