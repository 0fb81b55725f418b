package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/vecindex/internal/indexer"
	"github.com/dshills/vecindex/internal/project"
	"github.com/dshills/vecindex/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeProjectNotFound    = -32001 // Specified path does not exist
	ErrorCodeIndexingInProgress = -32002 // Another sync is already running for the project
	ErrorCodeNotIndexed         = -32003 // Project has no collection
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
	ErrorCodeCollision          = -32005 // Collection belongs to someone else
	ErrorCodeEmbeddingMismatch  = -32006 // Collection was built with another embedding function
	ErrorCodeCancelled          = -32007 // Sync was cancelled
)

// handleVectorise handles the vectorise tool invocation
func (s *Server) handleVectorise(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, root, err := projectArgs(request)
	if err != nil {
		return nil, err
	}
	paths := getStringSlice(args, "files")
	if len(paths) == 0 {
		paths = []string{"."}
	}
	return s.runSync(ctx, root, indexer.Request{
		Mode:      indexer.ModeVectorise,
		Paths:     paths,
		Recursive: getBoolDefault(args, "recursive", true),
	})
}

// handleUpdate handles the update tool invocation
func (s *Server) handleUpdate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, root, err := projectArgs(request)
	if err != nil {
		return nil, err
	}
	return s.runSync(ctx, root, indexer.Request{Mode: indexer.ModeUpdate})
}

func (s *Server) runSync(ctx context.Context, root string, req indexer.Request) (*mcp.CallToolResult, error) {
	p, err := s.acquire(root)
	if errors.Is(err, indexer.ErrSyncInProgress) {
		return nil, newMCPError(ErrorCodeIndexingInProgress, err.Error(), map[string]interface{}{
			"path": root,
		})
	}
	if err != nil {
		return nil, toMCPError("failed to load project", err)
	}
	defer p.lock.Release()

	syncer, err := p.Syncer()
	if err != nil {
		return nil, toMCPError("failed to prepare sync", err)
	}

	start := time.Now()
	stats, err := syncer.Run(ctx, req)
	if err != nil {
		return nil, toMCPError(fmt.Sprintf("%s failed", req.Mode), err)
	}

	response := map[string]interface{}{
		"add":         stats.Added,
		"update":      stats.Updated,
		"removed":     stats.Removed,
		"duration_ms": time.Since(start).Milliseconds(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleQuery handles the query tool invocation
func (s *Server) handleQuery(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, root, err := projectArgs(request)
	if err != nil {
		return nil, err
	}

	terms := getStringSlice(args, "query")
	if len(terms) == 0 {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	n := getIntDefault(args, "n", 0)
	if n < 0 || n > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "n must be between 1 and 100", map[string]interface{}{
			"param": "n",
			"value": n,
		})
	}

	p, err := s.project(root)
	if err != nil {
		return nil, toMCPError("failed to load project", err)
	}

	results, err := p.Query(ctx, project.QueryOptions{
		Terms:        terms,
		NResult:      n,
		Exclude:      getStringSlice(args, "exclude"),
		WithDocument: true,
	})
	if err != nil {
		return nil, toMCPError("query failed", err)
	}

	items := make([]map[string]interface{}, 0, len(results))
	for _, r := range results {
		items = append(items, map[string]interface{}{
			"path":     r.Path,
			"document": r.Document,
		})
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{"results": items})), nil
}

// handleReload handles the reload tool invocation
func (s *Server) handleReload(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, root, err := projectArgs(request)
	if err != nil {
		return nil, err
	}

	cached, err := s.reload(root)
	if errors.Is(err, indexer.ErrSyncInProgress) {
		return nil, newMCPError(ErrorCodeIndexingInProgress, err.Error(), map[string]interface{}{
			"path": root,
		})
	}
	if err != nil {
		return nil, toMCPError("reload failed", err)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"reloaded": cached,
		"path":     root,
	})), nil
}

// Helper functions

// projectArgs extracts the arguments map and the validated project path.
func projectArgs(request mcp.CallToolRequest) (map[string]interface{}, string, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, "", newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, "", newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}

	if err := validatePath(path); err != nil {
		code := ErrorCodeInvalidParams
		if errors.Is(err, ErrPathNotFound) {
			code = ErrorCodeProjectNotFound
		}
		return nil, "", newMCPError(code, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}
	return args, filepath.Clean(path), nil
}

// toMCPError maps domain errors onto MCP error codes.
func toMCPError(message string, err error) error {
	code := ErrorCodeInternalError
	var collision *types.CollisionError
	switch {
	case errors.Is(err, types.ErrNotFound):
		code = ErrorCodeNotIndexed
	case errors.As(err, &collision):
		code = ErrorCodeCollision
	case errors.Is(err, types.ErrEmbeddingMismatch):
		code = ErrorCodeEmbeddingMismatch
	case errors.Is(err, types.ErrCancelled):
		code = ErrorCodeCancelled
	}
	return newMCPError(code, message, map[string]interface{}{
		"error": err.Error(),
	})
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validatePath checks that path is an absolute, readable directory
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}

	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}

	if !info.IsDir() {
		return ErrNotDirectory
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()

	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringSlice extracts a list of strings. A single string is accepted
// as a one-element list.
func getStringSlice(args map[string]interface{}, key string) []string {
	switch val := args[key].(type) {
	case string:
		if val == "" {
			return nil
		}
		return []string{val}
	case []string:
		return val
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)
