package store

import "fmt"

// CommitRun inserts a buffered run and all of its rows within a single
// transaction. Run counters are derived from the buffered rows.
//
// Insert order respects FK dependencies:
//  1. Run
//  2. Files, queries, matches and unresolved seeds (depend on run id)
func (s *Store) CommitRun(batch *RunBatch) error {
	batch.mu.Lock()
	defer batch.mu.Unlock()

	run := batch.Run
	run.FileCount = len(batch.Files)
	run.QueryCount = len(batch.Queries)
	run.MatchCount = len(batch.Matches)
	run.UnresolvedCount = len(batch.Unresolved)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit run: begin: %w", err)
	}
	defer tx.Rollback()

	// 1. Run
	_, err = tx.Exec(`INSERT INTO runs
		(id, root, output, granularity, status, error, started, finished,
		 file_count, query_count, match_count, unresolved_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Root, nullableString(run.Output), nullableString(run.Granularity), run.Status, nullableString(run.Error),
		run.Started, run.Finished,
		run.FileCount, run.QueryCount, run.MatchCount, run.UnresolvedCount)
	if err != nil {
		return fmt.Errorf("commit run: run %s: %w", run.ID, err)
	}

	// 2. Child rows
	fileStmt, err := tx.Prepare("INSERT INTO run_files (run_id, path, hash, match_count) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("commit run: prepare files: %w", err)
	}
	defer fileStmt.Close()
	for _, f := range batch.Files {
		if _, err := fileStmt.Exec(run.ID, f.Path, nullableString(f.Hash), f.MatchCount); err != nil {
			return fmt.Errorf("commit run: file %s: %w", f.Path, err)
		}
	}

	queryStmt, err := tx.Prepare("INSERT INTO run_queries (run_id, seq, name, symbol_id, origin) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("commit run: prepare queries: %w", err)
	}
	defer queryStmt.Close()
	for _, q := range batch.Queries {
		if _, err := queryStmt.Exec(run.ID, q.Seq, q.Name, nullableInt64(q.SymbolID), q.Origin); err != nil {
			return fmt.Errorf("commit run: query %q: %w", q.Name, err)
		}
	}

	matchStmt, err := tx.Prepare(`INSERT INTO run_matches
		(run_id, path, start_byte, end_byte, line, col, text) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("commit run: prepare matches: %w", err)
	}
	defer matchStmt.Close()
	for _, m := range batch.Matches {
		if _, err := matchStmt.Exec(run.ID, m.Path, m.StartByte, m.EndByte, m.Line, m.Col, m.Text); err != nil {
			return fmt.Errorf("commit run: match %s:%d: %w", m.Path, m.Line, err)
		}
	}

	for _, u := range batch.Unresolved {
		if _, err := tx.Exec("INSERT INTO run_unresolved (run_id, symbol, file, reason) VALUES (?, ?, ?, ?)",
			run.ID, u.Symbol, u.File, nullableString(u.Reason)); err != nil {
			return fmt.Errorf("commit run: unresolved seed %q: %w", u.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	batch.Run = run
	return nil
}
