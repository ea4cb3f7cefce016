package reach

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/reach/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewStore(filepath.Join(t.TempDir(), "reach.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordRun_RoundTrip(t *testing.T) {
	root := writeProject(t, commonJSProject)
	e := newTestEngine(t, root)
	res, err := e.Analyze(context.Background(), []Seed{
		{Symbol: "call", File: "factory.js"},
		{Symbol: "call", File: "gone.js"},
	})
	require.NoError(t, err)

	st := newTestStore(t)
	id, err := RecordRun(st, e.Root(), e.Output(), res, nil)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	run, err := st.RunByID(id)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, store.StatusComplete, run.Status)
	assert.Equal(t, e.Root(), run.Root)
	assert.Equal(t, e.Output(), run.Output)
	assert.Equal(t, "statement", run.Granularity)
	assert.Equal(t, 2, run.FileCount)
	assert.Equal(t, res.Stats.QueriesProcessed, run.QueryCount)
	assert.Equal(t, res.Stats.Matches, run.MatchCount)
	assert.Equal(t, 1, run.UnresolvedCount)

	files, err := st.FilesByRun(id)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "factory.js", files[0].Path)
	assert.Equal(t, 2, files[0].MatchCount)
	assert.NotEmpty(t, files[0].Hash)

	matches, err := st.MatchesByRun(id)
	require.NoError(t, err)
	require.Len(t, matches, res.Stats.Matches)
	assert.Equal(t, "function call(x) {}", matches[0].Text)
	assert.Equal(t, 1, matches[0].Line)

	queries, err := st.QueriesByRun(id)
	require.NoError(t, err)
	require.NotEmpty(t, queries)
	assert.Equal(t, "call", queries[0].Name)
	require.NotNil(t, queries[0].SymbolID)

	unresolved, err := st.UnresolvedByRun(id)
	require.NoError(t, err)
	require.Len(t, unresolved, 1)
	assert.Equal(t, "gone.js", unresolved[0].File)
	assert.Equal(t, "file not found", unresolved[0].Reason)
}

func TestNewRunBatch_Status(t *testing.T) {
	res := &Result{Root: "/p", Granularity: GranularityTopLevel}

	b := NewRunBatch("/p", "/out", res, &OverflowError{Limit: 1})
	assert.Equal(t, store.StatusIncomplete, b.Run.Status)
	assert.Contains(t, b.Run.Error, "worklist overflow")
	assert.Equal(t, "top-level", b.Run.Granularity)

	b = NewRunBatch("/p", "/out", nil, errors.New("boom"))
	assert.Equal(t, store.StatusFailed, b.Run.Status)
	assert.Equal(t, "boom", b.Run.Error)
	assert.Equal(t, "/p", b.Run.Root)
	assert.Empty(t, b.Files)

	b = NewRunBatch("/p", "/out", res, nil)
	assert.Equal(t, store.StatusComplete, b.Run.Status)
	assert.Empty(t, b.Run.Error)
}

func TestRecordRun_FailedRun(t *testing.T) {
	st := newTestStore(t)
	id, err := RecordRun(st, "/p", "/out", nil, errors.New("indexing had 1 error(s)"))
	require.NoError(t, err)

	latest, err := st.LatestRun()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, id, latest.ID)
	assert.Equal(t, store.StatusFailed, latest.Status)
	assert.Zero(t, latest.FileCount)
}
