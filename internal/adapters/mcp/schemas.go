package mcpadapter

import (
	"github.com/mark3labs/mcp-go/mcp"
)

func askTool() mcp.Tool {
	return mcp.Tool{
		Name:        "ask",
		Description: "Answer a follow-up question against the indexed case documents, with citations",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"question": map[string]interface{}{
					"type":        "string",
					"description": "Question in natural language",
				},
			},
			Required: []string{"question"},
		},
	}
}

func runDefaultsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "run_default_questions",
		Description: "Answer the configured default questions in order",
		InputSchema: mcp.ToolInputSchema{Type: "object", Properties: map[string]interface{}{}},
	}
}

func listResultsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_results",
		Description: "List answered questions in the order they were answered",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"included_only": map[string]interface{}{
					"type":        "boolean",
					"description": "Only list results marked for export",
					"default":     false,
				},
			},
		},
	}
}

func setIncludedTool() mcp.Tool {
	return mcp.Tool{
		Name:        "set_included",
		Description: "Include or exclude a result from exports",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"id": map[string]interface{}{
					"type":        "string",
					"description": "Result id",
				},
				"included": map[string]interface{}{
					"type":        "boolean",
					"description": "Whether the result is exported",
				},
			},
			Required: []string{"id", "included"},
		},
	}
}

func exportTool() mcp.Tool {
	return mcp.Tool{
		Name:        "export_results",
		Description: "Export included results as plain text, or save a text/XLSX file to the export directory",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"format": map[string]interface{}{
					"type":        "string",
					"description": "Export format",
					"enum":        []string{"txt", "xlsx"},
					"default":     "txt",
				},
				"save": map[string]interface{}{
					"type":        "boolean",
					"description": "Save the file and return its key instead of the text. Always true for xlsx",
					"default":     false,
				},
			},
		},
	}
}

func corpusStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "corpus_status",
		Description: "Report per-algorithm retrieval state",
		InputSchema: mcp.ToolInputSchema{Type: "object", Properties: map[string]interface{}{}},
	}
}

func corpusReindexTool() mcp.Tool {
	return mcp.Tool{
		Name:        "corpus_reindex",
		Description: "Reload the configured corpus and rebuild every retrieval index",
		InputSchema: mcp.ToolInputSchema{Type: "object", Properties: map[string]interface{}{}},
	}
}

func flowCurrentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "flow_current",
		Description: "Show the current question of the case flow with progress",
		InputSchema: mcp.ToolInputSchema{Type: "object", Properties: map[string]interface{}{}},
	}
}

func flowAnswerTool() mcp.Tool {
	return mcp.Tool{
		Name:        "flow_answer",
		Description: "Answer the current flow question from the documents and advance the flow",
		InputSchema: mcp.ToolInputSchema{Type: "object", Properties: map[string]interface{}{}},
	}
}

func flowResetTool() mcp.Tool {
	return mcp.Tool{
		Name:        "flow_reset",
		Description: "Restart the case flow from its entry question",
		InputSchema: mcp.ToolInputSchema{Type: "object", Properties: map[string]interface{}{}},
	}
}
