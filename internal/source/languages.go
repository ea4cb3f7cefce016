package source

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	ts "github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Dialect names accepted by the parser.
const (
	JavaScript = "javascript"
	TypeScript = "typescript"
	TSX        = "tsx"
)

// extToDialect maps file extensions to the grammar that parses them.
var extToDialect = map[string]string{
	".js":  JavaScript,
	".jsx": JavaScript,
	".mjs": JavaScript,
	".cjs": JavaScript,
	".ts":  TypeScript,
	".mts": TypeScript,
	".cts": TypeScript,
	".tsx": TSX,
}

// dialectToGrammar is lazily initialized on first call via sync.Once.
var (
	dialectToGrammar map[string]*sitter.Language
	grammarsOnce     sync.Once
)

func initGrammars() {
	grammarsOnce.Do(func() {
		dialectToGrammar = map[string]*sitter.Language{
			JavaScript: javascript.GetLanguage(),
			TypeScript: ts.GetLanguage(),
			TSX:        tsx.GetLanguage(),
		}
	})
}

// DialectForFile returns the dialect name for a file path based on its
// extension. Returns ("", false) if the extension is not recognized.
func DialectForFile(path string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	d, ok := extToDialect[ext]
	return d, ok
}

// GrammarForDialect returns the tree-sitter Language for a dialect name.
func GrammarForDialect(dialect string) (*sitter.Language, bool) {
	initGrammars()
	l, ok := dialectToGrammar[dialect]
	return l, ok
}

// Extensions returns every supported file extension, sorted.
func Extensions() []string {
	exts := make([]string, 0, len(extToDialect))
	for ext := range extToDialect {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Supported reports whether path has a parseable extension.
func Supported(path string) bool {
	_, ok := DialectForFile(path)
	return ok
}
