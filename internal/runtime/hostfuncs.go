package runtime

import (
	"context"
	"log/slog"

	"github.com/risor-io/risor/object"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/reach/internal/source"
)

// makeFilesFn creates the "files" host function.
//
// files() → []string
func makeFilesFn(p Project) *object.Builtin {
	return object.NewBuiltin("files", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("files", 0, len(args))
		}
		results := []object.Object{}
		if p != nil {
			for _, f := range p.Files() {
				results = append(results, object.NewString(f))
			}
		}
		return object.NewList(results)
	})
}

// makeSymbolsFn creates the "symbols" host function.
//
// symbols(path) → []map{name, kind, line, col, top_level, imported}
//
// Re-export entries are omitted; they bind nothing in the file.
func makeSymbolsFn(p Project) *object.Builtin {
	return object.NewBuiltin("symbols", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("symbols", 1, len(args))
		}
		m, errObj := modelArg(p, "symbols", args[0])
		if errObj != nil {
			return errObj
		}

		results := []object.Object{}
		for _, sym := range m.Symbols() {
			if sym.Kind == source.KindReexport {
				continue
			}
			n := m.Node(sym.Decl)
			results = append(results, object.NewMap(map[string]object.Object{
				"name":      object.NewString(sym.Name),
				"kind":      object.NewString(string(sym.Kind)),
				"line":      object.NewInt(int64(n.Line)),
				"col":       object.NewInt(int64(n.Col)),
				"top_level": object.NewBool(m.IsTopLevel(sym.ID)),
				"imported":  object.NewString(sym.ImportedName),
			}))
		}
		return object.NewList(results)
	})
}

// makeTextFn creates the "text" host function.
//
// text(path) → string
func makeTextFn(p Project) *object.Builtin {
	return object.NewBuiltin("text", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("text", 1, len(args))
		}
		m, errObj := modelArg(p, "text", args[0])
		if errObj != nil {
			return errObj
		}
		return object.NewString(string(m.Source()))
	})
}

// makeQueryFn creates the "query" host function.
//
// query(pattern, path) → []map[string]map{text, line, col}
//
// The file is reparsed with its dialect's grammar; each match maps capture
// names to the captured text and its 1-based position.
func makeQueryFn(p Project) *object.Builtin {
	return object.NewBuiltin("query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("query", 2, len(args))
		}

		patternStr, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("query: pattern must be a string, got %s", args[0].Type())
		}
		m, errObj := modelArg(p, "query", args[1])
		if errObj != nil {
			return errObj
		}

		lang, ok := source.GrammarForDialect(m.Dialect())
		if !ok {
			return object.Errorf("query: no grammar for %s", m.Dialect())
		}
		src := m.Source()

		parser := sitter.NewParser()
		defer parser.Close()
		parser.SetLanguage(lang)

		tree, err := parser.ParseCtx(ctx, nil, src)
		if err != nil {
			return object.Errorf("query: tree-sitter parse failed: %v", err)
		}
		defer tree.Close()

		q, err := sitter.NewQuery([]byte(patternStr.Value()), lang)
		if err != nil {
			return object.Errorf("query: invalid pattern: %v", err)
		}
		defer q.Close()

		cursor := sitter.NewQueryCursor()
		defer cursor.Close()
		cursor.Exec(q, tree.RootNode())

		results := []object.Object{}
		for {
			match, ok := cursor.NextMatch()
			if !ok {
				break
			}
			match = cursor.FilterPredicates(match, src)
			if len(match.Captures) == 0 {
				continue
			}

			matchMap := make(map[string]object.Object)
			for _, capture := range match.Captures {
				name := q.CaptureNameForId(capture.Index)
				pt := capture.Node.StartPoint()
				matchMap[name] = object.NewMap(map[string]object.Object{
					"text": object.NewString(capture.Node.Content(src)),
					"line": object.NewInt(int64(pt.Row) + 1),
					"col":  object.NewInt(int64(pt.Column) + 1),
				})
			}
			results = append(results, object.NewMap(matchMap))
		}
		return object.NewList(results)
	})
}

// makeSeedFn creates the "seed" host function.
//
// seed(symbol, path) → nil
//
// The path is not checked here; seeds naming unknown files or symbols are
// reported as unresolved by the analysis.
func makeSeedFn(sink *seedSink) *object.Builtin {
	return object.NewBuiltin("seed", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("seed", 2, len(args))
		}
		symbol, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("seed: symbol must be a string, got %s", args[0].Type())
		}
		path, ok := args[1].(*object.String)
		if !ok {
			return object.Errorf("seed: path must be a string, got %s", args[1].Type())
		}
		if symbol.Value() == "" {
			return object.Errorf("seed: symbol must not be empty")
		}
		sink.add(Seed{Symbol: symbol.Value(), File: path.Value()})
		return object.Nil
	})
}

// modelArg resolves a path argument to its parsed model.
func modelArg(p Project, fn string, arg object.Object) (Model, *object.Error) {
	pathStr, ok := arg.(*object.String)
	if !ok {
		return nil, object.Errorf("%s: path must be a string, got %s", fn, arg.Type())
	}
	if p == nil {
		return nil, object.Errorf("%s: no project loaded", fn)
	}
	m, ok := p.Model(pathStr.Value())
	if !ok {
		return nil, object.Errorf("%s: unknown file %s", fn, pathStr.Value())
	}
	return m, nil
}

// logObject provides log.Info/Warn/Error methods for Risor scripts.
type logObject struct {
	logger *slog.Logger
}

func (l *logObject) Info(msg string) {
	l.logger.Info(msg)
}

func (l *logObject) Warn(msg string) {
	l.logger.Warn(msg)
}

func (l *logObject) Error(msg string) {
	l.logger.Error(msg)
}
