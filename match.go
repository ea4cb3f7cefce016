package reach

import (
	"path/filepath"

	"github.com/jward/reach/internal/source"
)

// scan applies q to one file: it matches candidate symbols, records their
// reportable nodes and returns a query for every symbol newly discovered
// in the file, in discovery order. Only the goroutine owning entry may
// call it.
func (s *session) scan(entry *fileEntry, q Query) []Query {
	var found []Query
	for _, sym := range s.candidates(entry, q) {
		for _, id := range s.collect(entry, sym) {
			d, _ := entry.model.Symbol(id)
			found = append(found, NewQuery(d.Name, entry.path).WithSymbol(id))
		}
	}
	return found
}

// candidates returns the symbols of entry that q refers to.
//
// In the origin file a resolved query names exactly its symbol, and an
// unresolved one every symbol of its name. Elsewhere a symbol is a
// candidate when it is bound by name, or imports the name under an alias,
// and its import site resolves to the origin file.
func (s *session) candidates(entry *fileEntry, q Query) []source.SymbolID {
	m := entry.model
	if entry.path == q.Origin {
		if !q.Resolved() {
			return m.SymbolsNamed(q.Name)
		}
		if _, ok := m.Symbol(q.Symbol); ok {
			return []source.SymbolID{q.Symbol}
		}
		return nil
	}

	var out []source.SymbolID
	seen := make(map[source.SymbolID]bool)
	consider := func(ids []source.SymbolID) {
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			sym, _ := m.Symbol(id)
			if !importsName(sym, q.Name) {
				continue
			}
			if s.importsFrom(entry, id, q.Origin) {
				out = append(out, id)
			}
		}
	}
	consider(m.SymbolsNamed(q.Name))
	consider(m.SymbolsImporting(q.Name))
	return out
}

// importsName reports whether sym can stand for the export name. Local
// bindings qualify by name alone; the import site decides.
func importsName(sym source.Symbol, name string) bool {
	switch sym.ImportedName {
	case "", name, "*", "default":
		return true
	}
	return false
}

// importsFrom reports whether sym's nearest import site resolves to
// origin. Resolution failures reject the candidate.
func (s *session) importsFrom(entry *fileEntry, sym source.SymbolID, origin string) bool {
	_, spec, ok := entry.model.ImportSite(sym)
	if !ok {
		return false
	}
	target, err := s.engine.resolver.Resolve(filepath.Dir(entry.path), spec)
	if err != nil {
		s.metrics.ResolutionFailures.Inc()
		s.logger.Debug("import not resolved", "file", entry.rel, "specifier", spec, "error", err)
		return false
	}
	return target == origin
}

// visit is one (occurrence, symbol) step of a collection walk.
type visit struct {
	node source.NodeID
	sym  source.SymbolID
}

// collect records every occurrence of root in entry and follows the
// symbols those occurrences bind, returning the symbols discovered for the
// first time. A symbol is collected at most once per file.
func (s *session) collect(entry *fileEntry, root source.SymbolID) []source.SymbolID {
	if entry.collected[root] {
		return nil
	}
	m := entry.model

	var discovered []source.SymbolID
	discover := func(id source.SymbolID) {
		if _, ok := entry.discovered[id]; ok {
			return
		}
		entry.discovered[id] = struct{}{}
		discovered = append(discovered, id)
	}

	var queue []visit
	pull := func(sym source.SymbolID) {
		if entry.collected[sym] {
			return
		}
		entry.collected[sym] = true
		if d := m.Declaration(sym); d != source.NoNode {
			queue = append(queue, visit{node: d, sym: sym})
		}
		for _, ref := range m.References(sym) {
			queue = append(queue, visit{node: ref, sym: sym})
		}
	}

	discover(root)
	pull(root)

	visited := make(map[visit]bool)
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		if visited[v] {
			continue
		}
		visited[v] = true

		if node := reportableNode(m, v.node, s.engine.granularity); node != source.NoNode {
			if _, ok := entry.matches[node]; !ok {
				entry.matches[node] = struct{}{}
				s.metrics.MatchesRecorded.Inc()
			}
		}
		for _, b := range boundSymbols(m, v.node) {
			discover(b)
			if b != v.sym {
				pull(b)
			}
		}
	}
	return discovered
}

// reportableNode reduces an occurrence to the node reported for it.
func reportableNode(m SourceModel, occ source.NodeID, g Granularity) source.NodeID {
	root := m.Root()
	if g == GranularityStatement {
		for n := occ; n != source.NoNode && n != root; n = m.Parent(n) {
			if !source.IsStatement(m.Kind(n)) {
				continue
			}
			if p := m.Parent(n); m.Kind(p) == "export_statement" {
				return p
			}
			return n
		}
	}
	for n := occ; n != source.NoNode; n = m.Parent(n) {
		if m.Parent(n) == root {
			return n
		}
	}
	return source.NoNode
}

// boundSymbols returns the symbols bound by the declarations enclosing an
// occurrence:
//   - a variable declarator whose initializer contains it binds its names
//   - an assignment whose right side contains it binds its identifier target
//   - a function named by it binds its name and parameters
//   - a function or class whose body contains it binds its name
func boundSymbols(m SourceModel, occ source.NodeID) []source.SymbolID {
	var out []source.SymbolID
	seen := make(map[source.SymbolID]bool)
	add := func(ids ...source.SymbolID) {
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}

	child := occ
	for _, a := range m.Ancestors(occ) {
		field := m.Field(child)
		kind := m.Kind(a)
		switch {
		case kind == "variable_declarator" && field == "value":
			add(m.SymbolsDeclaredIn(m.ChildByField(a, "name"))...)

		case kind == "variable_declarator" && field == "name" && child == occ:
			// const f = ({ token }) => ...
			if fn := m.ChildByField(a, "value"); source.IsFunction(m.Kind(fn)) {
				add(parameterSymbols(m, fn)...)
			}

		case kind == "assignment_expression" && field == "right":
			left := m.ChildByField(a, "left")
			if m.Kind(left) == "identifier" {
				if sym, ok := m.SymbolAt(left); ok {
					add(sym)
				}
			}

		case source.IsFunction(kind) && field == "name":
			if sym, ok := nameSymbol(m, a); ok {
				add(sym)
			}
			add(parameterSymbols(m, a)...)

		case (source.IsFunction(kind) || source.IsClass(kind)) && field == "body":
			if sym, ok := nameSymbol(m, a); ok {
				add(sym)
			}
		}
		child = a
	}
	return out
}

func nameSymbol(m SourceModel, fn source.NodeID) (source.SymbolID, bool) {
	name := m.ChildByField(fn, "name")
	if name == source.NoNode {
		return 0, false
	}
	return m.SymbolAt(name)
}

func parameterSymbols(m SourceModel, fn source.NodeID) []source.SymbolID {
	if p := m.ChildByField(fn, "parameters"); p != source.NoNode {
		return m.SymbolsDeclaredIn(p)
	}
	if p := m.ChildByField(fn, "parameter"); p != source.NoNode {
		return m.SymbolsDeclaredIn(p)
	}
	return nil
}
