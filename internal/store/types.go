package store

import "time"

// Run statuses.
const (
	StatusComplete   = "complete"
	StatusIncomplete = "incomplete"
	StatusFailed     = "failed"
)

type Run struct {
	ID              string
	Root            string
	Output          string
	Granularity     string
	Status          string
	Error           string
	Started         time.Time
	Finished        time.Time
	FileCount       int
	QueryCount      int
	MatchCount      int
	UnresolvedCount int
}

type RunFile struct {
	RunID      string
	Path       string
	Hash       string
	MatchCount int
}

type RunQuery struct {
	RunID    string
	Seq      int
	Name     string
	SymbolID *int64
	Origin   string
}

type RunMatch struct {
	RunID     string
	Path      string
	StartByte int
	EndByte   int
	Line      int
	Col       int
	Text      string
}

type UnresolvedSeed struct {
	RunID  string
	Symbol string
	File   string
	Reason string
}
