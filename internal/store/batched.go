package store

import (
	"sync"

	"github.com/google/uuid"
)

// RunBatch buffers everything recorded about one run in memory so the run
// can be committed in a single transaction. Appends are safe for
// concurrent use.
type RunBatch struct {
	mu sync.Mutex

	Run        Run
	Files      []RunFile
	Queries    []RunQuery
	Matches    []RunMatch
	Unresolved []UnresolvedSeed
}

// NewRunBatch starts a batch for run, assigning a fresh UUID when run.ID
// is empty.
func NewRunBatch(run Run) *RunBatch {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	return &RunBatch{Run: run}
}

func (b *RunBatch) AddFile(f RunFile) {
	b.mu.Lock()
	defer b.mu.Unlock()
	f.RunID = b.Run.ID
	b.Files = append(b.Files, f)
}

// AddQuery appends q, numbering it after the queries already buffered.
func (b *RunBatch) AddQuery(q RunQuery) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q.RunID = b.Run.ID
	q.Seq = len(b.Queries)
	b.Queries = append(b.Queries, q)
}

func (b *RunBatch) AddMatch(m RunMatch) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m.RunID = b.Run.ID
	b.Matches = append(b.Matches, m)
}

func (b *RunBatch) AddUnresolved(u UnresolvedSeed) {
	b.mu.Lock()
	defer b.mu.Unlock()
	u.RunID = b.Run.ID
	b.Unresolved = append(b.Unresolved, u)
}
