// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the organizer session's tools for LLM integration via
// stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/verdantlabs/arbor/internal/engine"
	"github.com/verdantlabs/arbor/internal/state"
)

// Server wraps the MCP server with Arbor tools.
type Server struct {
	mcp     *server.MCPServer
	session *engine.Session
}

// New creates a new MCP server with all Arbor tools registered.
func New(session *engine.Session) *Server {
	s := &Server{session: session}

	s.mcp = server.NewMCPServer(
		"Arbor",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Full-text search through the indexed note titles and content."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("list_folders",
		mcp.WithDescription("List the folder tree of one panel in display order, with nesting levels."),
		mcp.WithString("context", mcp.Required(), mcp.Description("Panel context: 'source' or 'studio'")),
	), s.listFolders)

	s.mcp.AddTool(mcp.NewTool("create_folder",
		mcp.WithDescription("Create a folder in a panel. Items can then be filed into it with assign_item."),
		mcp.WithString("context", mcp.Required(), mcp.Description("Panel context: 'source' or 'studio'")),
		mcp.WithString("name", mcp.Required(), mcp.Description("Folder display name")),
		mcp.WithString("parentId", mcp.Description("Optional parent folder ID for nesting")),
	), s.createFolder)

	s.mcp.AddTool(mcp.NewTool("assign_item",
		mcp.WithDescription("File a panel item into a folder by its visible title. "+
			"The item's native row is hidden and a proxy appears under the folder."),
		mcp.WithString("context", mcp.Required(), mcp.Description("Panel context: 'source' or 'studio'")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Item title as shown in the panel")),
		mcp.WithString("folderId", mcp.Required(), mcp.Description("Target folder ID")),
	), s.assignItem)

	s.mcp.AddTool(mcp.NewTool("add_task",
		mcp.WithDescription("Add a task to the workspace task board."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Task text")),
		mcp.WithString("sectionId", mcp.Description("Optional section to file the task under")),
	), s.addTask)

	s.mcp.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List all tasks and sections on the workspace task board."),
	), s.listTasks)

	s.mcp.AddTool(mcp.NewTool("export_workspace",
		mcp.WithDescription("Export the workspace's folders, mappings, pins, settings and tasks "+
			"as a backup document. The format is described by the arbor://backup-format resource."),
	), s.exportWorkspace)

	s.mcp.AddTool(mcp.NewTool("get_backup_contract",
		mcp.WithDescription("Returns the canonical backup document format. "+
			"Call this before constructing or editing backup documents by hand."),
	), s.getBackupContract)

	// Resource: backup document contract.
	s.mcp.AddResource(
		mcp.NewResource("arbor://backup-format", "Backup Document Contract",
			mcp.WithResourceDescription("Canonical JSON backup format that workspace exports follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readBackupFormatResource,
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

func panelContext(req mcp.CallToolRequest) (state.Context, error) {
	raw, err := req.RequireString("context")
	if err != nil {
		return "", err
	}
	ctx := state.Context(raw)
	if !ctx.Valid() {
		return "", fmt.Errorf("context must be %q or %q", state.ContextSource, state.ContextStudio)
	}
	return ctx, nil
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hits := s.session.Search(query)
	if len(hits) == 0 {
		return mcp.NewToolResultText("no matches"), nil
	}
	out, _ := json.MarshalIndent(hits, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listFolders(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pctx, err := panelContext(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	folders := s.session.Folders(pctx)
	if len(folders) == 0 {
		return mcp.NewToolResultText("no folders"), nil
	}
	var b strings.Builder
	for _, f := range folders {
		fmt.Fprintf(&b, "%s%s (id: %s)\n", strings.Repeat("  ", f.Level), f.Name, f.ID)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) createFolder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pctx, err := panelContext(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	parentID := ""
	if p, err := req.RequireString("parentId"); err == nil {
		parentID = p
	}

	f, err := s.session.CreateFolder(pctx, name, parentID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created folder %q (id: %s)", f.Name, f.ID)), nil
}

func (s *Server) assignItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pctx, err := panelContext(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	folderID, err := req.RequireString("folderId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.session.AssignItem(pctx, title, folderID); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("assigned %q", title)), nil
}

func (s *Server) addTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sectionID := ""
	if sec, err := req.RequireString("sectionId"); err == nil {
		sectionID = sec
	}

	task, err := s.session.AddTask(text, sectionID, "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("added task (id: %s)", task.ID)), nil
}

func (s *Server) listTasks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, _ := json.MarshalIndent(map[string]any{
		"tasks":    s.session.Tasks(),
		"sections": s.session.Sections(),
	}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) exportWorkspace(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(s.session.ExportWorkspace(), "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getBackupContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(BackupFormatContract), nil
}

func (s *Server) readBackupFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "arbor://backup-format",
			MIMEType: "text/markdown",
			Text:     BackupFormatContract,
		},
	}, nil
}
