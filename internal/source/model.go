package source

import (
	"sort"
	"strings"
)

// NodeID addresses a node in a Model's preorder table.
type NodeID int32

// NoNode is the parent of the root and the result of failed lookups.
const NoNode NodeID = -1

// Node is one named syntax node. Descendants of a node occupy the
// contiguous id range (id, Last].
type Node struct {
	Kind   string
	Field  string // field name within the parent, if any
	Detail string // declaration keyword: var, let or const
	Start  uint32
	End    uint32
	Line   int
	Col    int
	Parent NodeID
	Last   NodeID
}

// SymbolID identifies a binding within one Model.
type SymbolID int32

// SymbolKind classifies how a binding was introduced.
type SymbolKind string

const (
	KindVar      SymbolKind = "var"
	KindLet      SymbolKind = "let"
	KindConst    SymbolKind = "const"
	KindFunction SymbolKind = "function"
	KindClass    SymbolKind = "class"
	KindParam    SymbolKind = "param"
	KindCatch    SymbolKind = "catch"
	KindImport   SymbolKind = "import"
	KindReexport SymbolKind = "reexport"
)

// Symbol is a named binding. Decl is the identifier node of its first
// declaration.
type Symbol struct {
	ID    SymbolID
	Name  string
	Kind  SymbolKind
	Decl  NodeID
	Scope ScopeID

	// ImportedName is the export a module binding refers to: an export name,
	// "default" or "*". Empty for local bindings.
	ImportedName string
}

// ScopeID identifies a lexical scope. Scope 0 is the module scope.
type ScopeID int32

// Model is the immutable, parsed and bound representation of one file.
// It is safe for concurrent readers.
type Model struct {
	path    string
	dialect string
	src     []byte
	nodes   []Node
	lines   []uint32

	scopes   []scope
	scopeOf  []ScopeID
	symbols  []Symbol
	refs     [][]NodeID
	nodeSym  map[NodeID]SymbolID
	declared map[NodeID]bool

	byName     map[string][]SymbolID
	byImported map[string][]SymbolID
}

func newModel(path, dialect string, src []byte, nodes []Node) *Model {
	lines := []uint32{0}
	for i, c := range src {
		if c == '\n' {
			lines = append(lines, uint32(i+1))
		}
	}
	return &Model{
		path:       path,
		dialect:    dialect,
		src:        src,
		nodes:      nodes,
		lines:      lines,
		nodeSym:    make(map[NodeID]SymbolID),
		declared:   make(map[NodeID]bool),
		byName:     make(map[string][]SymbolID),
		byImported: make(map[string][]SymbolID),
	}
}

func (m *Model) Path() string    { return m.path }
func (m *Model) Dialect() string { return m.dialect }
func (m *Model) Source() []byte  { return m.src }

// Len returns the number of nodes in the table.
func (m *Model) Len() int { return len(m.nodes) }

// Root returns the program node.
func (m *Model) Root() NodeID {
	if len(m.nodes) == 0 {
		return NoNode
	}
	return 0
}

func (m *Model) valid(id NodeID) bool { return id >= 0 && int(id) < len(m.nodes) }

// Node returns the table entry for id.
func (m *Model) Node(id NodeID) Node { return m.nodes[id] }

func (m *Model) Kind(id NodeID) string {
	if !m.valid(id) {
		return ""
	}
	return m.nodes[id].Kind
}

func (m *Model) Field(id NodeID) string {
	if !m.valid(id) {
		return ""
	}
	return m.nodes[id].Field
}

func (m *Model) Parent(id NodeID) NodeID {
	if !m.valid(id) {
		return NoNode
	}
	return m.nodes[id].Parent
}

// Ancestors returns the ancestors of id, nearest first.
func (m *Model) Ancestors(id NodeID) []NodeID {
	var out []NodeID
	for p := m.Parent(id); p != NoNode; p = m.nodes[p].Parent {
		out = append(out, p)
	}
	return out
}

// Contains reports whether b is a or a descendant of a.
func (m *Model) Contains(a, b NodeID) bool {
	if !m.valid(a) || !m.valid(b) {
		return false
	}
	return a <= b && b <= m.nodes[a].Last
}

// Children returns the direct named children of id in source order.
func (m *Model) Children(id NodeID) []NodeID {
	if !m.valid(id) {
		return nil
	}
	var out []NodeID
	for c := id + 1; c <= m.nodes[id].Last; c = m.nodes[c].Last + 1 {
		out = append(out, c)
	}
	return out
}

// ChildByField returns the first child of id stored under field.
func (m *Model) ChildByField(id NodeID, field string) NodeID {
	for _, c := range m.Children(id) {
		if m.nodes[c].Field == field {
			return c
		}
	}
	return NoNode
}

// Span returns the byte range [start, end) of id.
func (m *Model) Span(id NodeID) (uint32, uint32) {
	n := m.nodes[id]
	return n.Start, n.End
}

// Text returns the exact source text of id.
func (m *Model) Text(id NodeID) string {
	if !m.valid(id) {
		return ""
	}
	n := m.nodes[id]
	return string(m.src[n.Start:n.End])
}

// Position returns the 1-based line and column of byte offset off.
func (m *Model) Position(off uint32) (line, col int) {
	i := sort.Search(len(m.lines), func(i int) bool { return m.lines[i] > off }) - 1
	if i < 0 {
		i = 0
	}
	return i + 1, int(off-m.lines[i]) + 1
}

// Symbols returns every symbol in declaration order.
func (m *Model) Symbols() []Symbol { return m.symbols }

// Symbol returns the symbol with id.
func (m *Model) Symbol(id SymbolID) (Symbol, bool) {
	if id < 0 || int(id) >= len(m.symbols) {
		return Symbol{}, false
	}
	return m.symbols[id], true
}

// Declaration returns the identifier node that first declares sym.
func (m *Model) Declaration(sym SymbolID) NodeID {
	s, ok := m.Symbol(sym)
	if !ok {
		return NoNode
	}
	return s.Decl
}

// SymbolsNamed returns the symbols whose local name is name.
func (m *Model) SymbolsNamed(name string) []SymbolID { return m.byName[name] }

// SymbolsImporting returns module bindings whose imported name is name,
// whatever their local alias.
func (m *Model) SymbolsImporting(name string) []SymbolID { return m.byImported[name] }

// References returns every identifier node bound to sym other than its
// first declaration, in source order. Redeclarations are included.
func (m *Model) References(sym SymbolID) []NodeID {
	if sym < 0 || int(sym) >= len(m.refs) {
		return nil
	}
	return m.refs[sym]
}

// SymbolAt returns the symbol bound at an identifier node.
func (m *Model) SymbolAt(id NodeID) (SymbolID, bool) {
	s, ok := m.nodeSym[id]
	return s, ok
}

// SymbolsDeclaredIn returns the symbols that have a declaring identifier
// inside the subtree of id, in source order.
func (m *Model) SymbolsDeclaredIn(id NodeID) []SymbolID {
	if !m.valid(id) {
		return nil
	}
	var out []SymbolID
	seen := make(map[SymbolID]bool)
	for n := id; n <= m.nodes[id].Last; n++ {
		if !m.declared[n] {
			continue
		}
		s := m.nodeSym[n]
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// IsTopLevel reports whether sym is bound at module scope.
func (m *Model) IsTopLevel(sym SymbolID) bool {
	s, ok := m.Symbol(sym)
	return ok && s.Scope == 0
}

// ModuleSpecifier returns the module specifier introduced by id when id is
// an import statement, a TypeScript import-require clause, a re-exporting
// export statement or a variable declarator initialized from require("...").
func (m *Model) ModuleSpecifier(id NodeID) (string, bool) {
	switch m.Kind(id) {
	case "import_statement", "export_statement", "import_require_clause":
		src := m.ChildByField(id, "source")
		if src == NoNode {
			return "", false
		}
		return m.stringValue(src)
	case "variable_declarator":
		call, _ := m.requireCall(m.ChildByField(id, "value"))
		if call == NoNode {
			return "", false
		}
		if args := m.Children(m.ChildByField(call, "arguments")); len(args) > 0 {
			return m.stringValue(args[0])
		}
	}
	return "", false
}

// ImportSite returns the nearest ancestor of sym's declaration that names a
// module specifier. The search stops at the enclosing statement.
func (m *Model) ImportSite(sym SymbolID) (NodeID, string, bool) {
	s, ok := m.Symbol(sym)
	if !ok {
		return NoNode, "", false
	}
	for _, a := range m.Ancestors(s.Decl) {
		if spec, ok := m.ModuleSpecifier(a); ok {
			return a, spec, true
		}
		if IsStatement(m.Kind(a)) {
			break
		}
	}
	return NoNode, "", false
}

// requireCall recognizes require("x") and require("x").name. It returns the
// call node and the accessed property name, if any.
func (m *Model) requireCall(id NodeID) (NodeID, string) {
	switch m.Kind(id) {
	case "call_expression":
		fn := m.ChildByField(id, "function")
		if m.Kind(fn) == "identifier" && m.Text(fn) == "require" {
			return id, ""
		}
	case "member_expression":
		obj := m.ChildByField(id, "object")
		prop := m.ChildByField(id, "property")
		if call, _ := m.requireCall(obj); call != NoNode && m.Kind(obj) == "call_expression" {
			return call, m.Text(prop)
		}
	}
	return NoNode, ""
}

func (m *Model) stringValue(id NodeID) (string, bool) {
	if m.Kind(id) != "string" {
		return "", false
	}
	t := m.Text(id)
	if len(t) < 2 {
		return "", false
	}
	return t[1 : len(t)-1], true
}

// IsStatement reports whether kind is a statement or declaration node.
func IsStatement(kind string) bool {
	if kind == "variable_declarator" {
		return false
	}
	return strings.HasSuffix(kind, "_statement") || strings.HasSuffix(kind, "_declaration")
}

// IsFunction reports whether kind introduces a function scope.
func IsFunction(kind string) bool {
	_, ok := functionKinds[kind]
	return ok
}

var functionKinds = map[string]struct{}{
	"function_declaration":           {},
	"generator_function_declaration": {},
	"function":                       {},
	"function_expression":            {},
	"generator_function":             {},
	"arrow_function":                 {},
	"method_definition":              {},
	"function_signature":             {},
	"method_signature":               {},
	"abstract_method_signature":      {},
	"call_signature":                 {},
	"construct_signature":            {},
	"function_type":                  {},
}

// IsClass reports whether kind is a class declaration or expression.
func IsClass(kind string) bool {
	switch kind {
	case "class_declaration", "abstract_class_declaration", "class":
		return true
	}
	return false
}
