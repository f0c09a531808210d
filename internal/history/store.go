// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/joshndala/shyft-rag-app/internal/query"
	"github.com/joshndala/shyft-rag-app/internal/transport"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrNotFound      = errors.New("history entry not found")
	ErrAmbiguousID   = errors.New("history id prefix matches more than one entry")
	ErrDatabaseError = errors.New("database error")
	ErrClosed        = errors.New("history store is closed")
)

// =============================================================================
// ENTRY
// =============================================================================

// Kind tells asks and searches apart.
type Kind string

const (
	KindAsk    Kind = "ask"
	KindSearch Kind = "search"
)

// Entry is one recorded submission.
type Entry struct {
	ID          string                   `json:"id"`
	Kind        Kind                     `json:"kind"`
	Query       string                   `json:"query"`
	Answer      string                   `json:"answer,omitempty"`
	Results     []transport.SearchResult `json:"results,omitempty"`
	ResultCount int                      `json:"result_count"`
	Error       string                   `json:"error,omitempty"`
	SessionID   string                   `json:"session_id,omitempty"`
	CreatedAt   time.Time                `json:"created_at"`
	Duration    time.Duration            `json:"duration"`
}

// Failed reports whether the submission ended in an error.
func (e Entry) Failed() bool {
	return e.Error != ""
}

// =============================================================================
// STORE
// =============================================================================

// Store is a SQLite backed history.
type Store struct {
	db         *sql.DB
	path       string
	maxEntries int

	mu     sync.Mutex
	closed bool
}

// Open creates or opens the database at path. maxEntries > 0 keeps only the
// newest entries after every write.
func Open(path string, maxEntries int) (*Store, error) {
	if path == "" {
		return nil, errors.New("history path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if _, err := db.Exec(InitMetadata); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize metadata: %w", err)
	}

	return &Store{db: db, path: path, maxEntries: maxEntries}, nil
}

// Path returns the database file.
func (s *Store) Path() string {
	return s.path
}

// Close releases the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) check() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Record stores a finished submission. It satisfies query.Recorder.
func (s *Store) Record(ctx context.Context, o query.Outcome) error {
	e := Entry{
		Kind:        KindAsk,
		Query:       o.Query,
		Answer:      o.Answer,
		Results:     o.Results,
		ResultCount: len(o.Results),
		SessionID:   o.SessionID,
		CreatedAt:   o.Started,
		Duration:    o.Duration,
	}
	if o.Mode == query.Search {
		e.Kind = KindSearch
	}
	if o.Err != nil {
		e.Error = o.Err.Error()
	}
	_, err := s.Add(ctx, e)
	return err
}

// Add inserts e, filling in ID and CreatedAt when unset.
func (s *Store) Add(ctx context.Context, e Entry) (Entry, error) {
	if err := s.check(); err != nil {
		return e, err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if e.Results == nil {
		e.Results = []transport.SearchResult{}
	}
	results, err := json.Marshal(e.Results)
	if err != nil {
		return e, fmt.Errorf("failed to encode results: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entries (id, kind, query, answer, results, result_count, error, session_id, created_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Kind), e.Query, e.Answer, string(results), e.ResultCount,
		e.Error, e.SessionID, e.CreatedAt.UnixMilli(), e.Duration.Milliseconds(),
	)
	if err != nil {
		return e, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	if s.maxEntries > 0 {
		if _, err := s.Prune(ctx, s.maxEntries); err != nil {
			return e, err
		}
	}
	return e, nil
}

const selectColumns = `e.id, e.kind, e.query, e.answer, e.results, e.result_count, e.error, e.session_id, e.created_at, e.duration_ms`

// List returns the newest entries first. limit <= 0 returns everything.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	q := `SELECT ` + selectColumns + ` FROM entries e ORDER BY e.created_at DESC, e.seq DESC`
	var args []interface{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	return s.query(ctx, q, args...)
}

// Search finds entries whose query or answer contains every word of text,
// best matches first. Words are matched as prefixes.
func (s *Store) Search(ctx context.Context, text string, limit int) ([]Entry, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	match := buildFTSQuery(text)
	if match == "" {
		return []Entry{}, nil
	}
	q := `SELECT ` + selectColumns + `
		FROM entries_fts fts
		JOIN entries e ON e.seq = fts.rowid
		WHERE entries_fts MATCH ?
		ORDER BY fts.rank, e.created_at DESC`
	args := []interface{}{match}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	return s.query(ctx, q, args...)
}

// Get returns the entry whose ID equals or starts with id.
func (s *Store) Get(ctx context.Context, id string) (Entry, error) {
	if err := s.check(); err != nil {
		return Entry{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Entry{}, ErrNotFound
	}
	entries, err := s.query(ctx,
		`SELECT `+selectColumns+` FROM entries e WHERE e.id = ? OR e.id LIKE ? ESCAPE '\' LIMIT 2`,
		id, escapeLike(id)+"%")
	if err != nil {
		return Entry{}, err
	}
	switch len(entries) {
	case 0:
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	case 1:
		return entries[0], nil
	}
	for _, e := range entries {
		if e.ID == id {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("%w: %s", ErrAmbiguousID, id)
}

// Delete removes one entry, resolving id like Get.
func (s *Store) Delete(ctx context.Context, id string) error {
	e, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, e.ID); err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	return nil
}

// Clear removes every entry and returns how many there were.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM entries`)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	return res.RowsAffected()
}

// Prune keeps the newest keep entries and returns how many were removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	if keep <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM entries WHERE seq NOT IN (
			SELECT seq FROM entries ORDER BY created_at DESC, seq DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	return res.RowsAffected()
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	return n, nil
}

func (s *Store) query(ctx context.Context, q string, args ...interface{}) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e          Entry
			kind       string
			results    string
			createdAt  int64
			durationMs int64
		)
		if err := rows.Scan(&e.ID, &kind, &e.Query, &e.Answer, &results, &e.ResultCount,
			&e.Error, &e.SessionID, &createdAt, &durationMs); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
		e.Kind = Kind(kind)
		e.CreatedAt = time.UnixMilli(createdAt)
		e.Duration = time.Duration(durationMs) * time.Millisecond
		if results != "" {
			// A corrupt results column still yields the rest of the entry
			_ = json.Unmarshal([]byte(results), &e.Results)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	return entries, nil
}

// buildFTSQuery quotes every word so FTS5 operators in user input are
// matched literally, and makes each a prefix match.
func buildFTSQuery(text string) string {
	words := strings.Fields(query.Normalize(text))
	if len(words) == 0 {
		return ""
	}
	terms := make([]string, 0, len(words))
	for _, w := range words {
		if strings.IndexFunc(w, isWordRune) < 0 {
			continue
		}
		terms = append(terms, `"`+strings.ReplaceAll(w, `"`, `""`)+`"*`)
	}
	return strings.Join(terms, " ")
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
