package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the project root",
	}
}

// vectoriseTool returns the tool definition for vectorise
func vectoriseTool() mcp.Tool {
	return mcp.Tool{
		Name:        "vectorise",
		Description: "Index files of a project so they can be retrieved by semantic query. Creates the project's collection if needed and removes chunks of files that no longer exist.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": pathProperty(),
				"files": map[string]interface{}{
					"type":        "array",
					"description": "Files, directories or glob patterns relative to the project root (default: the whole project)",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
				"recursive": map[string]interface{}{
					"type":        "boolean",
					"description": "Descend into directories and expand ** patterns",
					"default":     true,
				},
			},
			Required: []string{"path"},
		},
	}
}

// updateTool returns the tool definition for update
func updateTool() mcp.Tool {
	return mcp.Tool{
		Name:        "update",
		Description: "Re-index every file already in the project's collection and remove files that were deleted. The project must have been vectorised before.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": pathProperty(),
			},
			Required: []string{"path"},
		},
	}
}

// queryTool returns the tool definition for query
func queryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "query",
		Description: "Find the project files most relevant to a natural language or keyword query. Returns file paths with their content.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": pathProperty(),
				"query": map[string]interface{}{
					"type":        "array",
					"description": "Query keywords; they are joined with spaces",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
				"n": map[string]interface{}{
					"type":        "integer",
					"description": "Number of files to return (default: the project's n_result)",
					"minimum":     1,
					"maximum":     100,
				},
				"exclude": map[string]interface{}{
					"type":        "array",
					"description": "Files to leave out of the results",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
			},
			Required: []string{"path", "query"},
		},
	}
}

// reloadTool returns the tool definition for reload
func reloadTool() mcp.Tool {
	return mcp.Tool{
		Name:        "reload",
		Description: "Drop the cached configuration of a project so the next call re-reads .vecindex/config.json",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": pathProperty(),
			},
			Required: []string{"path"},
		},
	}
}
