// Package mcp implements the Model Context Protocol (MCP) server for vecindex.
//
// The server lets editor assistants keep a project's index current and
// query it without shelling out to the CLI. It exposes four tools:
//   - vectorise: index files of a project
//   - update: re-index every file already in the project's collection
//   - query: return the files most relevant to a query, with content
//   - reload: forget a project's cached configuration
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Stdout carries only protocol messages; logs go to stderr or the log file.
//
// # Basic Usage
//
//	vecindex serve
//
// # Project Cache
//
// The first call naming a project loads its configuration, opens (or
// reuses) the store for its db_path and builds its embedding function. The
// result is cached by project root until the reload tool is called for that
// root. Projects sharing a db_path share one store.
//
// Only one vectorise or update runs per project at a time; a concurrent
// call fails with ErrorCodeIndexingInProgress.
//
// # Tool: vectorise
//
//	Request:
//	{
//	  "name": "vectorise",
//	  "arguments": {
//	    "path": "/path/to/project",
//	    "files": ["src", "README.md"],
//	    "recursive": true
//	  }
//	}
//
//	Response:
//	{
//	  "add": 42,
//	  "update": 0,
//	  "removed": 0,
//	  "duration_ms": 1830
//	}
//
// # Tool: query
//
//	Request:
//	{
//	  "name": "query",
//	  "arguments": {
//	    "path": "/path/to/project",
//	    "query": ["config", "loader"],
//	    "n": 3
//	  }
//	}
//
//	Response:
//	{
//	  "results": [
//	    {"path": "/path/to/project/internal/config/config.go", "document": "package config ..."}
//	  ]
//	}
//
// # Errors
//
// Failures are returned as MCPError values with these codes:
//
//	-32602  invalid parameters
//	-32603  internal error
//	-32001  project path does not exist
//	-32002  a sync is already running for the project
//	-32003  project has not been vectorised
//	-32004  empty query
//	-32005  collection belongs to another user or host
//	-32006  collection was built with another embedding function
//	-32007  sync was cancelled
//
// # Shutdown
//
// When the transport closes, collections owned by the current user that
// hold no documents are deleted from every store the server opened.
package mcp
