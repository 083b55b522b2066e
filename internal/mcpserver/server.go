// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes site content editing tools for LLM integration via stdio
// transport.
package mcpserver

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"

	j "github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/sitepanel/internal/apperr"
	"github.com/starford/sitepanel/internal/content"
	"github.com/starford/sitepanel/internal/editor"
	"github.com/starford/sitepanel/internal/render"
)

const contractURI = "sitepanel://content-format"

// Editor is the editing session the tools drive.
type Editor interface {
	Snapshot() editor.Snapshot
	Load(ctx context.Context) error
	Save(ctx context.Context) error
	SetInput(ctx context.Context, p content.Path, raw string) (uint64, error)
	Append(ctx context.Context, p content.Path) (uint64, error)
	Remove(ctx context.Context, p content.Path, i int) (uint64, error)
	Upload(ctx context.Context, fieldPath content.Path, filename string, r io.Reader) (string, error)
	RemoveImage(ctx context.Context, fieldPath content.Path) (uint64, error)
}

var _ Editor = (*editor.Controller)(nil)

// Server wraps the MCP server with content tools.
type Server struct {
	mcp     *server.MCPServer
	ed      Editor
	walker  *render.Walker
	checkIP func(ip net.IP) error
}

// New creates a new MCP server with all content tools registered.
func New(ed Editor, log *slog.Logger) *Server {
	s := &Server{ed: ed, walker: render.NewWalker(log), checkIP: checkBlockedIP}

	s.mcp = server.NewMCPServer(
		"Site Panel",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_pages",
		mcp.WithDescription("List the site's pages and their sections with their indices."),
	), s.listPages)

	s.mcp.AddTool(mcp.NewTool("get_section",
		mcp.WithDescription("Show the editable fields of one section with the paths to edit them."),
		mcp.WithNumber("page", mcp.Required(), mcp.Description("Page index from list_pages")),
		mcp.WithNumber("section", mcp.Required(), mcp.Description("Section index within the page")),
	), s.getSection)

	s.mcp.AddTool(mcp.NewTool("read_value",
		mcp.WithDescription("Read the JSON at a path of the document."),
		mcp.WithString("path", mcp.Required(), mcp.Description(`JSON path array, e.g. ["pages",0,"title"]`)),
	), s.readValue)

	s.mcp.AddTool(mcp.NewTool("set_value",
		mcp.WithDescription("Set a field value. Read the contract via get_content_contract "+
			"or the "+contractURI+" resource first."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Value path from get_section")),
		mcp.WithString("value", mcp.Required(), mcp.Description("New value as text; converted by field kind")),
	), s.setValue)

	s.mcp.AddTool(mcp.NewTool("append_item",
		mcp.WithDescription("Append an empty item to a list."),
		mcp.WithString("path", mcp.Required(), mcp.Description("List path from get_section")),
	), s.appendItem)

	s.mcp.AddTool(mcp.NewTool("remove_item",
		mcp.WithDescription("Remove an item from a list."),
		mcp.WithString("path", mcp.Required(), mcp.Description("List path from get_section")),
		mcp.WithNumber("index", mcp.Required(), mcp.Description("Zero-based item index")),
	), s.removeItem)

	s.mcp.AddTool(mcp.NewTool("upload_image",
		mcp.WithDescription("Upload an image from an http(s) URL or a base64 data URI and set it on an image field."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Value path of an image field from get_section")),
		mcp.WithString("url", mcp.Required(), mcp.Description("Source URL or data URI")),
		mcp.WithString("filename", mcp.Description("Optional file name to upload as")),
	), s.uploadImage)

	s.mcp.AddTool(mcp.NewTool("save_content",
		mcp.WithDescription("Publish the edited document to the site."),
	), s.saveContent)

	s.mcp.AddTool(mcp.NewTool("reload_content",
		mcp.WithDescription("Discard unsaved edits and reload the document from the site."),
	), s.reloadContent)

	s.mcp.AddTool(mcp.NewTool("get_content_contract",
		mcp.WithDescription("Returns the site content format and the rules for editing it."),
	), s.getContentContract)

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Content Format",
			mcp.WithResourceDescription("Site document structure, field kinds and path format."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
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

func toolError(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(apperr.Message(err) + " (" + err.Error() + ")")
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := j.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func pathArg(req mcp.CallToolRequest, name string) (content.Path, error) {
	raw, err := req.RequireString(name)
	if err != nil {
		return nil, err
	}
	p, err := content.ParsePath(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if len(p) == 0 {
		return nil, fmt.Errorf("%s is empty", name)
	}
	return p, nil
}

// document returns the loaded document or an error result.
func (s *Server) document() (*content.Document, *mcp.CallToolResult) {
	snap := s.ed.Snapshot()
	if snap.Doc == nil {
		if snap.Err != nil {
			return nil, toolError(snap.Err)
		}
		return nil, mcp.NewToolResultError("content is not loaded yet")
	}
	return snap.Doc, nil
}

type sectionInfo struct {
	Index int    `json:"index"`
	ID    string `json:"id"`
	Title string `json:"title"`
}

type pageInfo struct {
	Index    int           `json:"index"`
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Sections []sectionInfo `json:"sections"`
}

func (s *Server) listPages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, res := s.document()
	if res != nil {
		return res, nil
	}
	pages := make([]pageInfo, 0, doc.PageCount())
	for _, p := range doc.Pages() {
		info := pageInfo{Index: p.Index, ID: p.ID, Title: p.Title, Sections: []sectionInfo{}}
		for _, sec := range doc.Sections(p.Index) {
			info.Sections = append(info.Sections, sectionInfo{Index: sec.Index, ID: sec.ID, Title: sec.Title})
		}
		pages = append(pages, info)
	}
	return jsonResult(pages), nil
}

func (s *Server) getSection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	page, err := req.RequireInt("page")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	section, err := req.RequireInt("section")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, res := s.document()
	if res != nil {
		return res, nil
	}
	sec, ok := doc.Section(page, section)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("no section %d on page %d", section, page)), nil
	}
	return jsonResult(map[string]any{
		"id":     sec.ID,
		"title":  sec.Title,
		"fields": outline(s.walker.Walk(sec.Content, sec.ContentPath)),
	}), nil
}

func (s *Server) readValue(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := pathArg(req, "path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, res := s.document()
	if res != nil {
		return res, nil
	}
	n, ok := doc.Read(p)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", p)), nil
	}
	out, err := content.EncodeIndent(n, "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) setValue(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := pathArg(req, "path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	value, err := req.RequireString("value")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rev, err := s.ed.SetInput(ctx, p, value)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("updated %s (revision %d)", p, rev)), nil
}

func (s *Server) appendItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := pathArg(req, "path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rev, err := s.ed.Append(ctx, p)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("appended to %s (revision %d)", p, rev)), nil
}

func (s *Server) removeItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := pathArg(req, "path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	index, err := req.RequireInt("index")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rev, err := s.ed.Remove(ctx, p, index)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("removed %s[%d] (revision %d)", p, index, rev)), nil
}

func (s *Server) saveContent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.ed.Save(ctx); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText("saved"), nil
}

func (s *Server) reloadContent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.ed.Load(ctx); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("reloaded (%d pages)", s.ed.Snapshot().Doc.PageCount())), nil
}

func (s *Server) getContentContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ContentFormatContract), nil
}

func (s *Server) readContractResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     ContentFormatContract,
		},
	}, nil
}
