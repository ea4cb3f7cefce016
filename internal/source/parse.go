package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

var (
	// ErrSyntax is matched by every *ParseError.
	ErrSyntax = errors.New("syntax error")
	// ErrUnsupported is returned for files whose extension has no grammar.
	ErrUnsupported = errors.New("unsupported file type")
)

// Diagnostic is one syntax problem reported by tree-sitter.
type Diagnostic struct {
	Line    int
	Col     int
	Message string
}

// ParseError reports a file that did not parse cleanly.
type ParseError struct {
	Path        string
	Diagnostics []Diagnostic
}

func (e *ParseError) Error() string {
	if len(e.Diagnostics) == 0 {
		return fmt.Sprintf("parse %s: syntax error", e.Path)
	}
	d := e.Diagnostics[0]
	return fmt.Sprintf("parse %s: %d syntax error(s), first at %d:%d: %s",
		e.Path, len(e.Diagnostics), d.Line, d.Col, d.Message)
}

// Is makes errors.Is(err, ErrSyntax) true for parse errors.
func (e *ParseError) Is(target error) bool {
	return target == ErrSyntax
}

// ParseFile reads and parses the file at path.
func ParseFile(ctx context.Context, path string) (*Model, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(ctx, path, src)
}

// Parse parses src with the grammar selected by path's extension and binds
// its declarations and references. The returned Model does not retain the
// tree-sitter tree.
func Parse(ctx context.Context, path string, src []byte) (*Model, error) {
	dialect, ok := DialectForFile(path)
	if !ok {
		return nil, fmt.Errorf("parse %s: %w", path, ErrUnsupported)
	}
	lang, _ := GrammarForDialect(dialect)

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: tree-sitter: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	b := &tableBuilder{src: src}
	cursor := sitter.NewTreeCursor(root)
	b.walk(cursor, NoNode)
	cursor.Close()

	if root.HasError() && len(b.diags) == 0 {
		b.diags = append(b.diags, Diagnostic{Line: 1, Col: 1, Message: "syntax error"})
	}
	if len(b.diags) > 0 {
		return nil, &ParseError{Path: path, Diagnostics: b.diags}
	}

	m := newModel(path, dialect, src, b.nodes)
	bind(m)
	return m, nil
}

// tableBuilder flattens a tree-sitter tree into a preorder node table.
// Only named nodes are kept; comments are dropped. Anonymous keyword
// children in the "kind" field are folded into their parent's Detail.
type tableBuilder struct {
	src   []byte
	nodes []Node
	diags []Diagnostic
}

func (b *tableBuilder) walk(cur *sitter.TreeCursor, parent NodeID) {
	n := cur.CurrentNode()
	field := cur.CurrentFieldName()
	kind := n.Type()

	switch {
	case n.IsMissing():
		b.diag(n, "missing "+kind)
	case kind == "ERROR":
		b.diag(n, "unexpected "+snippet(n.Content(b.src)))
	}

	id := parent
	switch {
	case n.IsNamed() && kind != "comment":
		id = NodeID(len(b.nodes))
		start := n.StartPoint()
		node := Node{
			Kind:   kind,
			Field:  field,
			Start:  n.StartByte(),
			End:    n.EndByte(),
			Line:   int(start.Row) + 1,
			Col:    int(start.Column) + 1,
			Parent: parent,
			Last:   id,
		}
		if kind == "variable_declaration" {
			node.Detail = "var"
		}
		b.nodes = append(b.nodes, node)
	case field == "kind" && parent != NoNode:
		b.nodes[parent].Detail = kind
	}

	if cur.GoToFirstChild() {
		for {
			b.walk(cur, id)
			if !cur.GoToNextSibling() {
				break
			}
		}
		cur.GoToParent()
	}

	if id != parent {
		b.nodes[id].Last = NodeID(len(b.nodes) - 1)
	}
}

func (b *tableBuilder) diag(n *sitter.Node, msg string) {
	p := n.StartPoint()
	b.diags = append(b.diags, Diagnostic{
		Line:    int(p.Row) + 1,
		Col:     int(p.Column) + 1,
		Message: msg,
	})
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 40 {
		s = s[:40] + "..."
	}
	return fmt.Sprintf("%q", s)
}
