package reach

import (
	"fmt"
	"time"
)

// Seed names a symbol and the file declaring it, relative to the project
// root.
type Seed struct {
	Symbol string `json:"symbol"`
	File   string `json:"file"`
}

func (s Seed) String() string {
	return s.Symbol + ":" + s.File
}

// Granularity selects the node reported for each occurrence.
type Granularity string

const (
	// GranularityStatement reports the closest enclosing statement or
	// declaration.
	GranularityStatement Granularity = "statement"
	// GranularityTopLevel reports the outermost statement under the
	// program root.
	GranularityTopLevel Granularity = "top-level"
)

// ParseGranularity validates s.
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(s); g {
	case GranularityStatement, GranularityTopLevel:
		return g, nil
	case "":
		return GranularityStatement, nil
	}
	return "", fmt.Errorf("unknown granularity %q (want statement or top-level)", s)
}

// Excerpt is one reported node of a file.
type Excerpt struct {
	Start uint32 `json:"start"`
	End   uint32 `json:"end"`
	Line  int    `json:"line"`
	Col   int    `json:"col"`
	Text  string `json:"text"`
}

// FileResult holds the excerpts of one file in ascending start offset, with
// longer spans first on ties.
type FileResult struct {
	// Path is slash-separated and relative to the project root.
	Path     string    `json:"path"`
	Hash     string    `json:"hash"`
	Excerpts []Excerpt `json:"excerpts"`
}

// Stats summarizes a run.
type Stats struct {
	Files            int           `json:"files"`
	QueriesProcessed int           `json:"queries_processed"`
	Matches          int           `json:"matches"`
	Waves            int           `json:"waves,omitempty"`
	Elapsed          time.Duration `json:"elapsed"`
}

// Result is the outcome of one analysis. Complete is false when the run
// stopped at the worklist limit; such a result must not be written out as
// if it were whole.
type Result struct {
	Root        string           `json:"root"`
	Granularity Granularity      `json:"granularity"`
	Complete    bool             `json:"complete"`
	Started     time.Time        `json:"started"`
	Files       []FileResult     `json:"files"`
	Queries     []Query          `json:"queries"`
	Unresolved  []UnresolvedSeed `json:"unresolved,omitempty"`
	Stats       Stats            `json:"stats"`
}

// File returns the result for a project-relative path.
func (r *Result) File(rel string) (FileResult, bool) {
	for _, f := range r.Files {
		if f.Path == rel {
			return f, true
		}
	}
	return FileResult{}, false
}
