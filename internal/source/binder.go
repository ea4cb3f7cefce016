package source

import "sort"

type scope struct {
	node     NodeID
	parent   ScopeID
	function bool
	names    map[string]SymbolID
}

// bind resolves the declarations and references of m in three passes:
// scopes, declarations (so hoisted bindings are visible everywhere in their
// scope), then references.
func bind(m *Model) {
	if len(m.nodes) == 0 {
		return
	}
	b := &binder{m: m}
	b.buildScopes()
	for id := range m.nodes {
		b.declare(NodeID(id))
	}
	for id := range m.nodes {
		b.reference(NodeID(id))
	}
	for i := range m.refs {
		refs := m.refs[i]
		sort.Slice(refs, func(a, b int) bool { return refs[a] < refs[b] })
	}
	for _, s := range m.symbols {
		m.byName[s.Name] = append(m.byName[s.Name], s.ID)
		if s.ImportedName != "" {
			m.byImported[s.ImportedName] = append(m.byImported[s.ImportedName], s.ID)
		}
	}
}

type binder struct {
	m *Model
}

func (b *binder) buildScopes() {
	m := b.m
	m.scopeOf = make([]ScopeID, len(m.nodes))
	m.scopes = append(m.scopes, scope{node: 0, parent: -1, function: true, names: map[string]SymbolID{}})
	for i := 1; i < len(m.nodes); i++ {
		id := NodeID(i)
		outer := m.scopeOf[m.nodes[id].Parent]
		if !b.createsScope(id) {
			m.scopeOf[id] = outer
			continue
		}
		m.scopeOf[id] = ScopeID(len(m.scopes))
		m.scopes = append(m.scopes, scope{
			node:     id,
			parent:   outer,
			function: IsFunction(m.nodes[id].Kind),
			names:    map[string]SymbolID{},
		})
	}
}

func (b *binder) createsScope(id NodeID) bool {
	m := b.m
	kind := m.nodes[id].Kind
	switch kind {
	case "for_statement", "for_in_statement", "catch_clause", "switch_body", "class_body":
		return true
	case "class":
		// A class expression's name is visible only inside the class.
		return true
	case "statement_block":
		// A function body shares the function's scope.
		return !(IsFunction(m.Kind(m.nodes[id].Parent)) && m.nodes[id].Field == "body")
	}
	return IsFunction(kind)
}

func (b *binder) functionScope(s ScopeID) ScopeID {
	for !b.m.scopes[s].function {
		s = b.m.scopes[s].parent
	}
	return s
}

// declare binds every identifier introduced by the construct at id.
func (b *binder) declare(id NodeID) {
	m := b.m
	n := m.nodes[id]
	switch n.Kind {
	case "variable_declarator":
		kind, sc := KindConst, m.scopeOf[id]
		switch m.Detail(n.Parent) {
		case "var":
			kind, sc = KindVar, b.functionScope(sc)
		case "let":
			kind = KindLet
		}
		name := m.ChildByField(id, "name")
		if call, prop := m.requireCall(m.ChildByField(id, "value")); call != NoNode {
			imported := "*"
			if prop != "" {
				imported = prop
			}
			b.bindPattern(name, sc, kind, imported, true)
			return
		}
		b.bindPattern(name, sc, kind, "", false)

	case "function_declaration", "generator_function_declaration":
		if name := m.ChildByField(id, "name"); name != NoNode {
			b.bind(name, m.scopeOf[n.Parent], KindFunction, "")
		}

	case "function", "function_expression", "generator_function":
		if name := m.ChildByField(id, "name"); name != NoNode {
			b.bind(name, m.scopeOf[id], KindFunction, "")
		}

	case "class_declaration", "abstract_class_declaration":
		if name := m.ChildByField(id, "name"); name != NoNode {
			b.bind(name, m.scopeOf[n.Parent], KindClass, "")
		}

	case "class":
		if name := m.ChildByField(id, "name"); name != NoNode {
			b.bind(name, m.scopeOf[id], KindClass, "")
		}

	case "formal_parameters":
		for _, p := range m.Children(id) {
			b.bindPattern(p, m.scopeOf[id], KindParam, "", false)
		}

	case "arrow_function":
		if p := m.ChildByField(id, "parameter"); p != NoNode {
			b.bindPattern(p, m.scopeOf[id], KindParam, "", false)
		}

	case "catch_clause":
		if p := m.ChildByField(id, "parameter"); p != NoNode {
			b.bindPattern(p, m.scopeOf[id], KindCatch, "", false)
		}

	case "for_in_statement":
		left := m.ChildByField(id, "left")
		switch n.Detail {
		case "var":
			b.bindPattern(left, b.functionScope(m.scopeOf[id]), KindVar, "", false)
		case "let":
			b.bindPattern(left, m.scopeOf[id], KindLet, "", false)
		case "const":
			b.bindPattern(left, m.scopeOf[id], KindConst, "", false)
		}

	case "import_statement":
		b.declareImport(id)

	case "export_statement":
		if m.ChildByField(id, "source") != NoNode {
			b.declareReexport(id)
		}
	}
}

func (b *binder) declareImport(id NodeID) {
	m := b.m
	for _, clause := range m.Children(id) {
		if m.Kind(clause) == "import_require_clause" {
			// import x = require("y")
			for _, c := range m.Children(clause) {
				if m.Kind(c) == "identifier" {
					b.bind(c, 0, KindImport, "*")
					break
				}
			}
			continue
		}
		if m.Kind(clause) != "import_clause" {
			continue
		}
		for _, c := range m.Children(clause) {
			switch m.Kind(c) {
			case "identifier":
				b.bind(c, 0, KindImport, "default")
			case "namespace_import":
				for _, ident := range m.Children(c) {
					b.bind(ident, 0, KindImport, "*")
				}
			case "named_imports":
				for _, spec := range m.Children(c) {
					if m.Kind(spec) != "import_specifier" {
						continue
					}
					name := m.ChildByField(spec, "name")
					local := m.ChildByField(spec, "alias")
					if local == NoNode {
						local = name
					}
					b.bind(local, 0, KindImport, m.exportName(name))
				}
			}
		}
	}
}

// declareReexport creates module symbols for `export { a as b } from "x"`.
// They have no scope entry, so they never capture references.
func (b *binder) declareReexport(id NodeID) {
	m := b.m
	for _, c := range m.Children(id) {
		switch m.Kind(c) {
		case "export_clause":
			for _, spec := range m.Children(c) {
				if m.Kind(spec) != "export_specifier" {
					continue
				}
				name := m.ChildByField(spec, "name")
				local := m.ChildByField(spec, "alias")
				if local == NoNode {
					local = name
				}
				b.newSymbol(local, 0, KindReexport, m.exportName(name))
			}
		case "namespace_export":
			for _, ident := range m.Children(c) {
				b.newSymbol(ident, 0, KindReexport, "*")
			}
		}
	}
}

// bindPattern binds the identifiers of a binding pattern. When fromRequire
// is set, object pattern keys become the imported names of their bindings.
func (b *binder) bindPattern(id NodeID, sc ScopeID, kind SymbolKind, imported string, fromRequire bool) {
	m := b.m
	keyed := func(key NodeID) string {
		if !fromRequire {
			return ""
		}
		return m.exportName(key)
	}
	switch m.Kind(id) {
	case "identifier", "shorthand_property_identifier_pattern":
		b.bind(id, sc, kind, imported)
	case "object_pattern":
		for _, c := range m.Children(id) {
			switch m.Kind(c) {
			case "shorthand_property_identifier_pattern":
				b.bind(c, sc, kind, keyed(c))
			case "pair_pattern":
				b.bindPattern(m.ChildByField(c, "value"), sc, kind, keyed(m.ChildByField(c, "key")), false)
			case "object_assignment_pattern":
				left := m.ChildByField(c, "left")
				b.bindPattern(left, sc, kind, keyed(left), false)
			default:
				b.bindPattern(c, sc, kind, "", false)
			}
		}
	case "array_pattern":
		for _, c := range m.Children(id) {
			b.bindPattern(c, sc, kind, "", false)
		}
	case "assignment_pattern", "object_assignment_pattern":
		b.bindPattern(m.ChildByField(id, "left"), sc, kind, imported, fromRequire)
	case "rest_pattern":
		for _, c := range m.Children(id) {
			b.bindPattern(c, sc, kind, "", false)
		}
	case "required_parameter", "optional_parameter":
		b.bindPattern(m.ChildByField(id, "pattern"), sc, kind, imported, fromRequire)
	}
}

// bind declares the identifier at node in scope sc. A redeclaration of a
// name already bound in sc reuses the existing symbol.
func (b *binder) bind(node NodeID, sc ScopeID, kind SymbolKind, imported string) {
	m := b.m
	if node == NoNode {
		return
	}
	name := m.Text(node)
	if sid, ok := m.scopes[sc].names[name]; ok {
		m.nodeSym[node] = sid
		m.declared[node] = true
		m.refs[sid] = append(m.refs[sid], node)
		return
	}
	sid := b.newSymbol(node, sc, kind, imported)
	m.scopes[sc].names[name] = sid
}

func (b *binder) newSymbol(node NodeID, sc ScopeID, kind SymbolKind, imported string) SymbolID {
	m := b.m
	sid := SymbolID(len(m.symbols))
	m.symbols = append(m.symbols, Symbol{
		ID:           sid,
		Name:         m.Text(node),
		Kind:         kind,
		Decl:         node,
		Scope:        sc,
		ImportedName: imported,
	})
	m.refs = append(m.refs, nil)
	m.nodeSym[node] = sid
	m.declared[node] = true
	return sid
}

// reference binds an identifier in expression position to the nearest
// enclosing declaration. Unresolved names are globals and stay unbound.
func (b *binder) reference(id NodeID) {
	m := b.m
	switch m.nodes[id].Kind {
	case "identifier", "shorthand_property_identifier":
	default:
		return
	}
	if m.declared[id] || b.excluded(id) {
		return
	}
	name := m.Text(id)
	for sc := m.scopeOf[id]; sc >= 0; sc = m.scopes[sc].parent {
		if sid, ok := m.scopes[sc].names[name]; ok {
			m.nodeSym[id] = sid
			m.refs[sid] = append(m.refs[sid], id)
			return
		}
	}
}

// excluded reports identifiers that name module exports rather than local
// bindings.
func (b *binder) excluded(id NodeID) bool {
	m := b.m
	parent := m.nodes[id].Parent
	switch m.Kind(parent) {
	case "import_specifier", "namespace_import", "import_clause", "namespace_export":
		return true
	case "export_specifier":
		if m.nodes[id].Field == "alias" {
			return true
		}
		stmt := m.Parent(m.Parent(parent))
		return m.ChildByField(stmt, "source") != NoNode
	}
	return false
}

// Detail returns the declaration keyword recorded on id.
func (m *Model) Detail(id NodeID) string {
	if !m.valid(id) {
		return ""
	}
	return m.nodes[id].Detail
}

// exportName returns the export name spelled by an identifier or string
// node, without quotes.
func (m *Model) exportName(id NodeID) string {
	if s, ok := m.stringValue(id); ok {
		return s
	}
	return m.Text(id)
}
