// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Synapse enforcement tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/synapse/internal/enforcer"
)

// Server wraps the MCP server with Synapse tools.
type Server struct {
	mcp *server.MCPServer
	svc *enforcer.Service
}

// New creates a new MCP server with all Synapse tools registered.
func New(svc *enforcer.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Synapse",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("check_files",
		mcp.WithDescription("Check files against the rules that apply to them. "+
			"Returns violations of FORBIDDEN and REQUIRED rules."),
		mcp.WithArray("files", mcp.Required(),
			mcp.Description("File paths relative to the project root"),
			mcp.Items(map[string]any{"type": "string"})),
		mcp.WithBoolean("dry_run", mcp.Description("Report violations without failing the run")),
	), s.checkFiles)

	s.mcp.AddTool(mcp.NewTool("enforce_context",
		mcp.WithDescription("Render the rules that apply to a path, for use as context before editing it."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path relative to the project root")),
		mcp.WithString("format", mcp.Description("Output format"),
			mcp.Enum(enforcer.FormatMarkdown, enforcer.FormatJSON, enforcer.FormatPlain)),
	), s.enforceContext)

	s.mcp.AddTool(mcp.NewTool("rules_for_path",
		mcp.WithDescription("List applicable rules, the inheritance chain and overridden rule ids for a path."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path relative to the project root")),
	), s.rulesForPath)

	s.mcp.AddTool(mcp.NewTool("validate_pre_write",
		mcp.WithDescription("Validate content before writing it to a path. "+
			"Returns violations and proposed automatic fixes. The file does not need to exist."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Destination path relative to the project root")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Content that would be written")),
	), s.validatePreWrite)

	s.mcp.AddTool(mcp.NewTool("search_rules",
		mcp.WithDescription("Search rule patterns, names and messages across all rule files."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of hits (default 20)")),
	), s.searchRules)

	s.mcp.AddTool(mcp.NewTool("cache_stats",
		mcp.WithDescription("Resolution cache counters and rule graph summary."),
	), s.cacheStats)

	s.mcp.AddTool(mcp.NewTool("get_rule_format",
		mcp.WithDescription("Returns the rule file format. "+
			"Call this before creating or editing .synapse.md files."),
	), s.getRuleFormat)

	s.mcp.AddResource(
		mcp.NewResource(RuleFormatURI, "Rule File Format",
			mcp.WithResourceDescription("How .synapse.md rule files declare, inherit and override rules."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readRuleFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) checkFiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	files := req.GetStringSlice("files", nil)
	if len(files) == 0 {
		return mcp.NewToolResultError("files is required"), nil
	}
	res, err := s.svc.CheckFiles(ctx, files, req.GetBool("dry_run", false))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) enforceContext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Context(path, req.GetString("format", enforcer.FormatMarkdown))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(res.Context), nil
}

func (s *Server) rulesForPath(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.RulesForPath(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) validatePreWrite(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.ValidatePreWrite(path, content)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) searchRules(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hits, err := s.svc.SearchRules(query, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(hits)
}

func (s *Server) cacheStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]any{
		"cache": s.svc.CacheStats(),
		"graph": s.svc.GraphStats(),
	})
}

func (s *Server) getRuleFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(RuleFormatContract), nil
}

func (s *Server) readRuleFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      RuleFormatURI,
			MIMEType: "text/markdown",
			Text:     RuleFormatContract,
		},
	}, nil
}
