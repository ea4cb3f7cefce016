package reach

import (
	"errors"
	"time"

	"github.com/jward/reach/internal/store"
)

// NewRunBatch converts an analysis outcome into a run report. res may be
// nil when the run failed before producing one.
func NewRunBatch(root string, output string, res *Result, runErr error) *store.RunBatch {
	run := store.Run{
		Root:     root,
		Output:   output,
		Status:   store.StatusComplete,
		Finished: time.Now(),
	}
	switch {
	case errors.Is(runErr, ErrWorklistOverflow):
		run.Status = store.StatusIncomplete
	case runErr != nil:
		run.Status = store.StatusFailed
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if res == nil {
		run.Started = run.Finished
		return store.NewRunBatch(run)
	}

	run.Root = res.Root
	run.Granularity = string(res.Granularity)
	run.Started = res.Started
	b := store.NewRunBatch(run)

	for _, fr := range res.Files {
		b.AddFile(store.RunFile{Path: fr.Path, Hash: fr.Hash, MatchCount: len(fr.Excerpts)})
		for _, x := range fr.Excerpts {
			b.AddMatch(store.RunMatch{
				Path:      fr.Path,
				StartByte: int(x.Start),
				EndByte:   int(x.End),
				Line:      x.Line,
				Col:       x.Col,
				Text:      x.Text,
			})
		}
	}
	for _, q := range res.Queries {
		rq := store.RunQuery{Name: q.Name, Origin: q.Origin}
		if q.Resolved() {
			id := int64(q.Symbol)
			rq.SymbolID = &id
		}
		b.AddQuery(rq)
	}
	for _, u := range res.Unresolved {
		b.AddUnresolved(store.UnresolvedSeed{Symbol: u.Seed.Symbol, File: u.Seed.File, Reason: u.Reason})
	}
	return b
}

// RecordRun stores the outcome of a run and returns its id.
func RecordRun(st *store.Store, root, output string, res *Result, runErr error) (string, error) {
	b := NewRunBatch(root, output, res, runErr)
	if err := st.CommitRun(b); err != nil {
		return "", err
	}
	return b.Run.ID, nil
}
