// Package mcpadapter exposes the inquiry services as MCP tools over stdio.
package mcpadapter

import (
	"context"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/case-inquiry/internal/core/domain"
	"github.com/kirillkom/case-inquiry/internal/core/ports"
	"github.com/kirillkom/case-inquiry/internal/infrastructure/export"
)

const (
	ServerName    = "case-inquiry"
	ServerVersion = "1.0.0"
)

// Exporter renders and stores result lists.
type Exporter interface {
	Render(format export.Format, results []domain.InquiryResult) ([]byte, error)
	Save(ctx context.Context, format export.Format, results []domain.InquiryResult) (string, error)
}

type Server struct {
	mcp      *server.MCPServer
	inquiry  ports.InquiryService
	flow     ports.FlowService
	corpus   ports.CorpusService
	exporter Exporter
	reload   func(context.Context) (domain.IndexReport, error)
	logger   *slog.Logger
}

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithCorpusReloader(reload func(context.Context) (domain.IndexReport, error)) Option {
	return func(s *Server) {
		s.reload = reload
	}
}

// NewServer registers the tools. flow may be nil, in which case the flow
// tools are not offered.
func NewServer(inquiry ports.InquiryService, flow ports.FlowService, corpus ports.CorpusService, exporter Exporter, opts ...Option) *Server {
	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false)),
		inquiry:  inquiry,
		flow:     flow,
		corpus:   corpus,
		exporter: exporter,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	s.mcp.AddTool(askTool(), s.handleAsk)
	s.mcp.AddTool(runDefaultsTool(), s.handleRunDefaults)
	s.mcp.AddTool(listResultsTool(), s.handleListResults)
	s.mcp.AddTool(setIncludedTool(), s.handleSetIncluded)
	s.mcp.AddTool(exportTool(), s.handleExport)
	s.mcp.AddTool(corpusStatusTool(), s.handleCorpusStatus)
	if s.reload != nil {
		s.mcp.AddTool(corpusReindexTool(), s.handleCorpusReindex)
	}
	if s.flow != nil {
		s.mcp.AddTool(flowCurrentTool(), s.handleFlowCurrent)
		s.mcp.AddTool(flowAnswerTool(), s.handleFlowAnswer)
		s.mcp.AddTool(flowResetTool(), s.handleFlowReset)
	}
}

// Serve speaks MCP over the given streams until ctx is done.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	return stdio.Listen(ctx, in, out)
}
