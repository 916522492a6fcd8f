package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentic-research/pagefly/api"
	"github.com/agentic-research/pagefly/internal/dir"
	"github.com/mark3labs/mcp-go/mcp"
)

// Composer composes a page.
type Composer interface {
	Compose(ctx context.Context, name string) (*api.ComposedOutput, error)
}

// Pages is the part of the store the tools read directly.
type Pages interface {
	ListNames(ctx context.Context, prefix string) ([]string, error)
	Dependents(ctx context.Context, name string) ([]string, error)
}

// PageService holds what the tool handlers need.
type PageService struct {
	composer Composer
	pages    Pages
}

func NewPageService(composer Composer, pages Pages) *PageService {
	return &PageService{composer: composer, pages: pages}
}

// DependentsOutput is the result of page_dependents.
type DependentsOutput struct {
	Name       string   `json:"name"`
	Dependents []string `json:"dependents"`
}

// ComposePage handles compose_page. A composition failure is a successful
// tool call whose JSON carries the error; only a failure without a
// structured report is a tool error.
func (s *PageService) ComposePage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := s.composer.Compose(ctx, name)
	if out == nil {
		return mcp.NewToolResultError(fmt.Sprintf("compose %s: %v", name, err)), nil
	}
	return jsonResult(out)
}

// PageTree handles page_tree.
func (s *PageService) PageTree(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prefix := req.GetString("prefix", "/")
	root, err := dir.Compose(ctx, s.pages, prefix)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(root)
}

// PageDependents handles page_dependents.
func (s *PageService) PageDependents(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	deps, err := s.pages.Dependents(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if deps == nil {
		deps = []string{}
	}
	return jsonResult(DependentsOutput{Name: name, Dependents: deps})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}
