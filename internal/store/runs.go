package store

import (
	"database/sql"
	"errors"
	"fmt"
)

const runColumns = `id, root, output, granularity, status, error, started, finished,
	file_count, query_count, match_count, unresolved_count`

func scanRun(row rowScanner) (*Run, error) {
	var r Run
	var output, granularity, errText sql.NullString
	err := row.Scan(&r.ID, &r.Root, &output, &granularity, &r.Status, &errText,
		&r.Started, &r.Finished, &r.FileCount, &r.QueryCount, &r.MatchCount, &r.UnresolvedCount)
	if err != nil {
		return nil, err
	}
	r.Output = output.String
	r.Granularity = granularity.String
	r.Error = errText.String
	return &r, nil
}

// RunByID returns the run with id, or nil if there is none.
func (s *Store) RunByID(id string) (*Run, error) {
	r, err := scanRun(s.db.QueryRow("SELECT "+runColumns+" FROM runs WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", id, err)
	}
	return r, nil
}

// LatestRun returns the most recently started run, or nil if there is none.
func (s *Store) LatestRun() (*Run, error) {
	r, err := scanRun(s.db.QueryRow("SELECT " + runColumns + " FROM runs ORDER BY started DESC, rowid DESC LIMIT 1"))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	return r, nil
}

// Runs returns up to limit runs, newest first. limit <= 0 means all.
func (s *Store) Runs(limit int) ([]*Run, error) {
	q := "SELECT " + runColumns + " FROM runs ORDER BY started DESC, rowid DESC"
	var args []any
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("runs: %w", err)
	}
	defer rows.Close()

	var out []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("runs: scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// FilesByRun returns the files of a run ordered by path.
func (s *Store) FilesByRun(runID string) ([]*RunFile, error) {
	rows, err := s.db.Query(
		"SELECT run_id, path, hash, match_count FROM run_files WHERE run_id = ? ORDER BY path", runID)
	if err != nil {
		return nil, fmt.Errorf("files by run: %w", err)
	}
	defer rows.Close()

	var out []*RunFile
	for rows.Next() {
		var f RunFile
		var hash sql.NullString
		if err := rows.Scan(&f.RunID, &f.Path, &hash, &f.MatchCount); err != nil {
			return nil, fmt.Errorf("files by run: scan: %w", err)
		}
		f.Hash = hash.String
		out = append(out, &f)
	}
	return out, rows.Err()
}

// QueriesByRun returns the queries of a run in processing order.
func (s *Store) QueriesByRun(runID string) ([]*RunQuery, error) {
	rows, err := s.db.Query(
		"SELECT run_id, seq, name, symbol_id, origin FROM run_queries WHERE run_id = ? ORDER BY seq", runID)
	if err != nil {
		return nil, fmt.Errorf("queries by run: %w", err)
	}
	defer rows.Close()

	var out []*RunQuery
	for rows.Next() {
		var q RunQuery
		var symbolID sql.NullInt64
		if err := rows.Scan(&q.RunID, &q.Seq, &q.Name, &symbolID, &q.Origin); err != nil {
			return nil, fmt.Errorf("queries by run: scan: %w", err)
		}
		q.SymbolID = int64Ptr(symbolID)
		out = append(out, &q)
	}
	return out, rows.Err()
}

// MatchesByRun returns the matches of a run ordered by path and position.
func (s *Store) MatchesByRun(runID string) ([]*RunMatch, error) {
	rows, err := s.db.Query(`SELECT run_id, path, start_byte, end_byte, line, col, text
		FROM run_matches WHERE run_id = ? ORDER BY path, start_byte, end_byte DESC`, runID)
	if err != nil {
		return nil, fmt.Errorf("matches by run: %w", err)
	}
	defer rows.Close()

	var out []*RunMatch
	for rows.Next() {
		var m RunMatch
		if err := rows.Scan(&m.RunID, &m.Path, &m.StartByte, &m.EndByte, &m.Line, &m.Col, &m.Text); err != nil {
			return nil, fmt.Errorf("matches by run: scan: %w", err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// UnresolvedByRun returns the unresolved seeds of a run in insertion order.
func (s *Store) UnresolvedByRun(runID string) ([]*UnresolvedSeed, error) {
	rows, err := s.db.Query(
		"SELECT run_id, symbol, file, reason FROM run_unresolved WHERE run_id = ? ORDER BY id", runID)
	if err != nil {
		return nil, fmt.Errorf("unresolved by run: %w", err)
	}
	defer rows.Close()

	var out []*UnresolvedSeed
	for rows.Next() {
		var u UnresolvedSeed
		var reason sql.NullString
		if err := rows.Scan(&u.RunID, &u.Symbol, &u.File, &reason); err != nil {
			return nil, fmt.Errorf("unresolved by run: scan: %w", err)
		}
		u.Reason = reason.String
		out = append(out, &u)
	}
	return out, rows.Err()
}
