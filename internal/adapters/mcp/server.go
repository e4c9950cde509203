// Package mcpadapter exposes the recommender as an MCP tool.
package mcpadapter

import (
	"context"
	"log/slog"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/assessment-recommender/internal/core/domain"
	"github.com/kirillkom/assessment-recommender/internal/core/ports"
)

const (
	serverName        = "assessment-recommender"
	ToolRecommend     = "recommend_assessments"
	queryArgumentName = "query"
)

type Server struct {
	recommender ports.Recommender
	logger      *slog.Logger
}

func New(recommender ports.Recommender, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{recommender: recommender, logger: logger}
}

func (s *Server) MCPServer(version string) *server.MCPServer {
	srv := server.NewMCPServer(serverName, version, server.WithToolCapabilities(false))
	srv.AddTool(recommendTool(), s.handleRecommend)
	return srv
}

// ServeStdio blocks until stdin is closed.
func (s *Server) ServeStdio(version string) error {
	return server.ServeStdio(s.MCPServer(version))
}

func recommendTool() mcp.Tool {
	return mcp.NewTool(ToolRecommend,
		mcp.WithDescription("Recommend up to 10 skill assessments for a job description, free-text query, or job posting URL."),
		mcp.WithString(queryArgumentName,
			mcp.Required(),
			mcp.Description("Free text, or an http(s) URL whose page text is used as the query."),
		),
	)
}

func (s *Server) handleRecommend(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString(queryArgumentName)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	views, err := s.recommender.Recommend(ctx, query)
	if err != nil {
		if domain.IsKind(err, domain.ErrInvalidInput) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		s.logger.Error("mcp_recommend_failed", "error", err)
		return mcp.NewToolResultError("recommendation failed"), nil
	}
	if views == nil {
		views = []domain.AssessmentView{}
	}

	payload, err := json.Marshal(views)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(payload)), nil
}
