package reach

import (
	"context"

	"github.com/jward/reach/internal/source"
)

// SourceModel is the read-only view of one parsed file that resolution
// needs. *source.Model implements it.
type SourceModel interface {
	Path() string
	Dialect() string
	Source() []byte
	Root() source.NodeID
	Node(id source.NodeID) source.Node
	Kind(id source.NodeID) string
	Field(id source.NodeID) string
	Parent(id source.NodeID) source.NodeID
	Ancestors(id source.NodeID) []source.NodeID
	ChildByField(id source.NodeID, field string) source.NodeID
	Span(id source.NodeID) (uint32, uint32)
	Text(id source.NodeID) string
	Position(off uint32) (line, col int)

	Symbols() []source.Symbol
	Symbol(id source.SymbolID) (source.Symbol, bool)
	SymbolsNamed(name string) []source.SymbolID
	SymbolsImporting(name string) []source.SymbolID
	Declaration(sym source.SymbolID) source.NodeID
	References(sym source.SymbolID) []source.NodeID
	SymbolAt(id source.NodeID) (source.SymbolID, bool)
	SymbolsDeclaredIn(id source.NodeID) []source.SymbolID
	IsTopLevel(sym source.SymbolID) bool
	ImportSite(sym source.SymbolID) (source.NodeID, string, bool)
}

// Parser builds the model of one file from its content.
type Parser func(ctx context.Context, path string, src []byte) (SourceModel, error)

// ModuleResolver maps a module specifier written in a file under baseDir
// to the canonical absolute path of its target.
type ModuleResolver interface {
	Resolve(baseDir, specifier string) (string, error)
}

func parseSource(ctx context.Context, path string, src []byte) (SourceModel, error) {
	m, err := source.Parse(ctx, path, src)
	if err != nil {
		return nil, err
	}
	return m, nil
}
