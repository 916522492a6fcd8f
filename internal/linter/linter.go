// Package linter checks query text declared by pages before it reaches the
// store. Findings are advisory; the store is the final judge of a query.
package linter

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	sqllang "github.com/smacker/go-tree-sitter/sql"
)

// Diagnostic is one syntax finding. Line and Column are 0-indexed.
type Diagnostic struct {
	Message string
	Line    uint32
	Column  uint32
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("line %d col %d: %s", d.Line+1, d.Column+1, d.Message)
}

// LintQuery parses query with the tree-sitter SQL grammar and returns one
// diagnostic per ERROR or MISSING node. Blank queries produce nothing.
func LintQuery(ctx context.Context, query string) ([]Diagnostic, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	parser := sitter.NewParser()
	parser.SetLanguage(sqllang.GetLanguage())
	tree, err := parser.ParseCtx(ctx, nil, []byte(query))
	if err != nil {
		return nil, fmt.Errorf("parse query: %w", err)
	}

	root := tree.RootNode()
	if root == nil || !root.HasError() {
		return nil, nil
	}

	var diags []Diagnostic
	collectErrors(root, &diags)
	if len(diags) == 0 {
		diags = append(diags, Diagnostic{Message: "query contains syntax errors"})
	}
	return diags, nil
}

// collectErrors gathers ERROR/MISSING nodes without descending into them.
func collectErrors(node *sitter.Node, diags *[]Diagnostic) {
	if node.IsError() || node.IsMissing() {
		msg := "syntax error"
		if node.IsMissing() {
			msg = fmt.Sprintf("missing %s", node.Type())
		}
		*diags = append(*diags, Diagnostic{
			Message: msg,
			Line:    node.StartPoint().Row,
			Column:  node.StartPoint().Column,
		})
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.HasError() || child.IsError() || child.IsMissing() {
			collectErrors(child, diags)
		}
	}
}
