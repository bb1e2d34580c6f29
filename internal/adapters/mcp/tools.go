package mcpadapter

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/case-inquiry/internal/infrastructure/export"
)

func (s *Server) handleAsk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question := getStringDefault(request.GetArguments(), "question", "")
	if strings.TrimSpace(question) == "" {
		return mcp.NewToolResultError("question parameter is required"), nil
	}
	result, err := s.inquiry.Ask(ctx, question)
	if err != nil {
		return s.toolError("ask", err), nil
	}
	return jsonResult(result)
}

func (s *Server) handleRunDefaults(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	results, err := s.inquiry.RunDefaultQuestions(ctx)
	if err != nil && len(results) == 0 {
		return s.toolError("run_default_questions", err), nil
	}
	return jsonResult(map[string]interface{}{"results": results})
}

func (s *Server) handleListResults(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	results := s.inquiry.Results()
	if getBoolDefault(request.GetArguments(), "included_only", false) {
		results = export.Included(results)
	}
	return jsonResult(map[string]interface{}{"results": results})
}

func (s *Server) handleSetIncluded(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	id := getStringDefault(args, "id", "")
	included, ok := args["included"].(bool)
	if id == "" || !ok {
		return mcp.NewToolResultError("id and included parameters are required"), nil
	}
	if err := s.inquiry.SetIncluded(ctx, id, included); err != nil {
		return s.toolError("set_included", err), nil
	}
	return jsonResult(map[string]interface{}{"id": id, "included": included})
}

func (s *Server) handleExport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	format, err := export.ParseFormat(getStringDefault(args, "format", "txt"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if format == export.FormatXLSX || getBoolDefault(args, "save", false) {
		key, err := s.exporter.Save(ctx, format, s.inquiry.Results())
		if err != nil {
			return s.toolError("export_results", err), nil
		}
		return jsonResult(map[string]interface{}{"key": key, "format": format})
	}

	data, err := s.exporter.Render(format, s.inquiry.Results())
	if err != nil {
		return s.toolError("export_results", err), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleCorpusStatus(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]interface{}{"algorithms": s.corpus.Status()})
}

func (s *Server) handleCorpusReindex(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := s.reload(ctx)
	if err != nil {
		return s.toolError("corpus_reindex", err), nil
	}
	return jsonResult(report)
}

func (s *Server) handleFlowCurrent(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	response := map[string]interface{}{
		"state":    s.flow.State(),
		"progress": s.flow.Progress(),
	}
	if q, ok := s.flow.Current(); ok {
		response["current"] = q
	}
	return jsonResult(response)
}

func (s *Server) handleFlowAnswer(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	step, err := s.flow.AnswerCurrent(ctx)
	if err != nil {
		return s.toolError("flow_answer", err), nil
	}
	return jsonResult(step)
}

func (s *Server) handleFlowReset(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.flow.Reset()
	return jsonResult(map[string]interface{}{"state": s.flow.State()})
}

// toolError reports a failed call to the client as a tool-level error so the
// model can see it, rather than as a protocol error.
func (s *Server) toolError(tool string, err error) *mcp.CallToolResult {
	s.logger.Warn("mcp_tool_failed", "tool", tool, "error", err)
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(raw)), nil
}

func getStringDefault(args map[string]interface{}, key, fallback string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return fallback
}

func getBoolDefault(args map[string]interface{}, key string, fallback bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return fallback
}
