// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the story preview for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/heritage/internal/narration"
	"github.com/starford/heritage/internal/preview"
)

const formatURI = "heritage://story-format"

// Server wraps the MCP server with the heritage tools.
type Server struct {
	mcp  *server.MCPServer
	opts preview.Options
}

// New creates a new MCP server. Each tool call runs its own preview
// activation built from opts; opts.Notifiers is ignored.
func New(opts preview.Options) *Server {
	s := &Server{opts: opts}

	s.mcp = server.NewMCPServer(
		"Heritage",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("latest_story",
		mcp.WithDescription("Return the most recently created approved story with its monument, as JSON."),
	), s.latestStory)

	s.mcp.AddTool(mcp.NewTool("narrate_story",
		mcp.WithDescription("Request narration of the latest approved story and report the outcome."),
		mcp.WithString("language", mcp.Required(),
			mcp.Description("Narration language: en (English) or kn (Kannada)"),
			mcp.Enum(narrationLanguages()...),
		),
	), s.narrateStory)

	s.mcp.AddTool(mcp.NewTool("get_story_format",
		mcp.WithDescription("Returns the story file format. Call this before drafting a story file."),
	), s.getStoryFormat)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Story Format",
			mcp.WithResourceDescription("Markdown story file format read by the local catalog."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readStoryFormatResource,
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

func narrationLanguages() []string {
	out := make([]string, 0, len(narration.Languages))
	for _, l := range narration.Languages {
		out = append(out, string(l))
	}
	return out
}

// collector gathers the notifications of one tool call.
type collector struct {
	mu    sync.Mutex
	notes []preview.Notification
}

func (c *collector) Notify(n preview.Notification) {
	c.mu.Lock()
	c.notes = append(c.notes, n)
	c.mu.Unlock()
}

func (c *collector) last() (preview.Notification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.notes) == 0 {
		return preview.Notification{}, false
	}
	return c.notes[len(c.notes)-1], true
}

// load runs a fresh activation up to a settled view model.
func (s *Server) load(ctx context.Context) (*preview.Activation, *collector, error) {
	sink := &collector{}
	opts := s.opts
	opts.Notifiers = func(string) preview.Notifier { return sink }

	a := preview.NewActivation(ctx, uuid.NewString(), opts)
	select {
	case <-a.Load():
		return a, sink, nil
	case <-ctx.Done():
		a.Close()
		return nil, nil, ctx.Err()
	}
}

func (s *Server) latestStory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a, sink, err := s.load(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	defer a.Close()

	if n, ok := sink.last(); ok {
		return mcp.NewToolResultError(n.Title + ": " + n.Description), nil
	}
	vm := a.Snapshot()
	if vm.Record == nil {
		return mcp.NewToolResultText("no approved stories yet"), nil
	}
	out, _ := json.MarshalIndent(vm.Record, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) narrateStory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("language")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	lang, err := narration.ParseLanguage(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	a, sink, err := s.load(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	defer a.Close()

	if n, ok := sink.last(); ok {
		return mcp.NewToolResultError(n.Title + ": " + n.Description), nil
	}
	done, ok := a.Narrate(lang)
	if !ok {
		return mcp.NewToolResultError("no approved story to narrate"), nil
	}
	select {
	case <-done:
	case <-ctx.Done():
		return mcp.NewToolResultError(ctx.Err().Error()), nil
	}

	n, ok := sink.last()
	if !ok {
		return mcp.NewToolResultText("narration finished without text"), nil
	}
	if n.Severity == preview.SeverityDestructive {
		return mcp.NewToolResultError(n.Title + ": " + n.Description), nil
	}
	return mcp.NewToolResultText(n.Title + ": " + n.Description), nil
}

func (s *Server) getStoryFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(StoryFormatContract), nil
}

func (s *Server) readStoryFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     StoryFormatContract,
		},
	}, nil
}
