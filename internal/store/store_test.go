package store

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

func ptr[T any](v T) *T { return &v }

// newTestBatch builds a batch with one of every row kind.
func newTestBatch(started time.Time) *RunBatch {
	b := NewRunBatch(Run{
		Root:        "/repo",
		Output:      "/output",
		Granularity: "statement",
		Status:      StatusComplete,
		Started:     started,
		Finished:    started.Add(time.Second),
	})
	b.AddFile(RunFile{Path: "src/a.js", Hash: ContentHash([]byte("a")), MatchCount: 2})
	b.AddFile(RunFile{Path: "src/b.js", MatchCount: 1})
	b.AddQuery(RunQuery{Name: "foo", SymbolID: ptr(int64(3)), Origin: "src/a.js"})
	b.AddQuery(RunQuery{Name: "bar", Origin: "src/b.js"})
	b.AddMatch(RunMatch{Path: "src/a.js", StartByte: 0, EndByte: 20, Line: 1, Col: 1, Text: "function foo() {}"})
	b.AddMatch(RunMatch{Path: "src/a.js", StartByte: 22, EndByte: 30, Line: 3, Col: 1, Text: "foo();"})
	b.AddMatch(RunMatch{Path: "src/b.js", StartByte: 0, EndByte: 12, Line: 1, Col: 1, Text: "bar(foo);"})
	b.AddUnresolved(UnresolvedSeed{Symbol: "missing", File: "src/c.js", Reason: "file not found"})
	return b
}

// =============================================================================
// Schema & Lifecycle
// =============================================================================

func TestMigrate_AllTablesExist(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	expectedTables := []string{
		"metadata", "runs", "run_files", "run_queries", "run_matches", "run_unresolved",
	}

	for _, table := range expectedTables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	// Running migrate again should not error.
	require.NoError(t, s.Migrate())

	v, err := s.GetMetadata("schema_version")
	require.NoError(t, err)
	assert.Equal(t, schemaVersion, v)
}

func TestNewStore_BadPath(t *testing.T) {
	t.Parallel()
	_, err := NewStore(filepath.Join(t.TempDir(), "missing", "dir", "test.db"))
	assert.Error(t, err)
}

func TestMetadata_Upsert(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	v, err := s.GetMetadata("absent")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.SetMetadata("k", "one"))
	require.NoError(t, s.SetMetadata("k", "two"))
	v, err = s.GetMetadata("k")
	require.NoError(t, err)
	assert.Equal(t, "two", v)
}

// =============================================================================
// Runs
// =============================================================================

func TestCommitRun_RoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	b := newTestBatch(started)
	require.NotEmpty(t, b.Run.ID)
	require.NoError(t, s.CommitRun(b))

	run, err := s.RunByID(b.Run.ID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, "/repo", run.Root)
	assert.Equal(t, "/output", run.Output)
	assert.Equal(t, "statement", run.Granularity)
	assert.Equal(t, StatusComplete, run.Status)
	assert.Empty(t, run.Error)
	assert.True(t, started.Equal(run.Started))
	assert.Equal(t, 2, run.FileCount)
	assert.Equal(t, 2, run.QueryCount)
	assert.Equal(t, 3, run.MatchCount)
	assert.Equal(t, 1, run.UnresolvedCount)

	files, err := s.FilesByRun(run.ID)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "src/a.js", files[0].Path)
	assert.Equal(t, ContentHash([]byte("a")), files[0].Hash)
	assert.Empty(t, files[1].Hash)

	queries, err := s.QueriesByRun(run.ID)
	require.NoError(t, err)
	require.Len(t, queries, 2)
	assert.Equal(t, 0, queries[0].Seq)
	require.NotNil(t, queries[0].SymbolID)
	assert.Equal(t, int64(3), *queries[0].SymbolID)
	assert.Equal(t, 1, queries[1].Seq)
	assert.Nil(t, queries[1].SymbolID)

	matches, err := s.MatchesByRun(run.ID)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, "function foo() {}", matches[0].Text)
	assert.Equal(t, 3, matches[1].Line)
	assert.Equal(t, "src/b.js", matches[2].Path)

	unresolved, err := s.UnresolvedByRun(run.ID)
	require.NoError(t, err)
	require.Len(t, unresolved, 1)
	assert.Equal(t, "missing", unresolved[0].Symbol)
	assert.Equal(t, "file not found", unresolved[0].Reason)
}

func TestCommitRun_DuplicateIDFails(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	b := newTestBatch(time.Now().UTC())
	require.NoError(t, s.CommitRun(b))

	dup := NewRunBatch(Run{ID: b.Run.ID, Root: "/repo", Status: StatusFailed})
	dup.AddMatch(RunMatch{Path: "x.js", Text: "x"})
	require.Error(t, s.CommitRun(dup))

	// The failed transaction leaves the original rows untouched.
	matches, err := s.MatchesByRun(b.Run.ID)
	require.NoError(t, err)
	assert.Len(t, matches, 3)
}

func TestRunByID_Missing(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	run, err := s.RunByID("nope")
	require.NoError(t, err)
	assert.Nil(t, run)

	latest, err := s.LatestRun()
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestRuns_NewestFirst(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	var ids []string
	for i := 0; i < 3; i++ {
		b := newTestBatch(base.Add(time.Duration(i) * time.Hour))
		require.NoError(t, s.CommitRun(b))
		ids = append(ids, b.Run.ID)
	}

	runs, err := s.Runs(0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[0], runs[2].ID)

	runs, err = s.Runs(2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	latest, err := s.LatestRun()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, ids[2], latest.ID)
}

func TestDeleteRun_Cascades(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	keep := newTestBatch(time.Now().UTC())
	drop := newTestBatch(time.Now().UTC())
	require.NoError(t, s.CommitRun(keep))
	require.NoError(t, s.CommitRun(drop))

	require.NoError(t, s.DeleteRun(drop.Run.ID))

	run, err := s.RunByID(drop.Run.ID)
	require.NoError(t, err)
	assert.Nil(t, run)

	for _, table := range []string{"run_files", "run_queries", "run_matches", "run_unresolved"} {
		var n int
		require.NoError(t, s.db.QueryRow(
			fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE run_id = ?", table), drop.Run.ID,
		).Scan(&n))
		assert.Zero(t, n, table)

		require.NoError(t, s.db.QueryRow(
			fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE run_id = ?", table), keep.Run.ID,
		).Scan(&n))
		assert.Positive(t, n, table)
	}
}

// =============================================================================
// Batch
// =============================================================================

func TestRunBatch_ConcurrentAppends(t *testing.T) {
	t.Parallel()
	b := NewRunBatch(Run{Root: "/repo", Status: StatusComplete})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				b.AddQuery(RunQuery{Name: fmt.Sprintf("q%d_%d", i, j), Origin: "a.js"})
				b.AddMatch(RunMatch{Path: fmt.Sprintf("f%d.js", i), StartByte: j})
			}
		}(i)
	}
	wg.Wait()

	require.Len(t, b.Queries, 400)
	require.Len(t, b.Matches, 400)
	seen := make(map[int]bool)
	for _, q := range b.Queries {
		assert.Equal(t, b.Run.ID, q.RunID)
		seen[q.Seq] = true
	}
	assert.Len(t, seen, 400)
}

func TestNewRunBatch_KeepsExplicitID(t *testing.T) {
	t.Parallel()
	b := NewRunBatch(Run{ID: "fixed"})
	assert.Equal(t, "fixed", b.Run.ID)
}

func TestContentHash(t *testing.T) {
	t.Parallel()
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		ContentHash(nil))
	assert.NotEqual(t, ContentHash([]byte("a")), ContentHash([]byte("b")))
}
