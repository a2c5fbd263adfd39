package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/opswatch/coalmine/internal/canary"
)

// timeLayout is a fixed-width analogue of time.RFC3339Nano: RFC3339Nano
// trims trailing fractional-second zeros, so lexical ordering of the
// stored text diverges from chronological order whenever two timestamps'
// formatted widths differ. UpcomingDeadlines relies on "ORDER BY deadline
// ASC" matching true time order, so every timestamp column is always
// formatted to this fixed 9-digit-fraction layout instead.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLConfig configures the durable sqlite-backed store. Grounded on the
// teacher's backends.SQLiteConfig (Path/JournalMode/BusyTimeout), trimmed to
// what a single canaries database needs.
type SQLConfig struct {
	Path        string
	JournalMode string
	BusyTimeoutMS int
}

// SQLStore is a Store backed by database/sql + mattn/go-sqlite3, with WAL
// journaling so list/get readers don't block the single writer goroutine
// that serializes lifecycle mutations, and bounded-backoff retry around
// transient SQLITE_BUSY/locked errors (the Go analogue of the source's
// pymongo.errors.AutoReconnect retry loop, bounded instead of infinite per
// this project's concurrency model).
type SQLStore struct {
	db *sql.DB
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS canaries (
	id          TEXT PRIMARY KEY,
	slug        TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	periodicity TEXT NOT NULL,
	emails      TEXT NOT NULL DEFAULT '[]',
	paused      INTEGER NOT NULL DEFAULT 0,
	late        INTEGER NOT NULL DEFAULT 0,
	deadline    TEXT
);

CREATE TABLE IF NOT EXISTS canary_history (
	canary_id TEXT NOT NULL REFERENCES canaries(id) ON DELETE CASCADE,
	seq       INTEGER NOT NULL,
	at        TEXT NOT NULL,
	comment   TEXT NOT NULL,
	PRIMARY KEY (canary_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_canaries_paused_late_deadline ON canaries(paused, late, deadline);
CREATE INDEX IF NOT EXISTS idx_canaries_paused_deadline ON canaries(paused, deadline);
CREATE INDEX IF NOT EXISTS idx_canaries_late_deadline ON canaries(late, deadline);
`

// OpenSQLStore opens (creating if needed) the sqlite database at cfg.Path
// and ensures the schema exists.
func OpenSQLStore(cfg SQLConfig) (*SQLStore, error) {
	if cfg.Path == "" {
		cfg.Path = "./data/coalmine.db"
	}
	if cfg.JournalMode == "" {
		cfg.JournalMode = "WAL"
	}
	if cfg.BusyTimeoutMS == 0 {
		cfg.BusyTimeoutMS = 5000
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create database directory %q: %w", dir, err)
		}
	}
	dsn := fmt.Sprintf("%s?_journal_mode=%s&_busy_timeout=%d", cfg.Path, cfg.JournalMode, cfg.BusyTimeoutMS)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open database %q: %w", cfg.Path, err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping database: %w", err)
	}
	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Close() error { return s.db.Close() }

// retry bounds exposure to transient SQLITE_BUSY/locked errors with a
// short exponential backoff; callers above this layer see only the final
// outcome, per spec.md's "transient backend errors ... retried transparently
// with bounded backoff".
func retry(ctx context.Context, fn func() error) error {
	const maxAttempts = 5
	backoff := 20 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil || !isTransient(lastErr) {
			return lastErr
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return lastErr
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

func emailsToJSON(emails []string) string {
	if len(emails) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(emails)
	return string(b)
}

func emailsFromJSON(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	_ = json.Unmarshal([]byte(s), &out)
	return out
}

func (s *SQLStore) Create(ctx context.Context, c *canary.Canary) error {
	return retry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		var deadline sql.NullString
		if c.HasDeadline {
			deadline = sql.NullString{String: c.Deadline.UTC().Format(timeLayout), Valid: true}
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO canaries (id, slug, name, description, periodicity, emails, paused, late, deadline)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.Slug, c.Name, c.Description, c.Periodicity, emailsToJSON(c.Emails),
			boolToInt(c.Paused), boolToInt(c.Late), deadline,
		)
		if err != nil {
			if isCollision(err) {
				return ErrCollision
			}
			return err
		}
		if err := writeHistory(ctx, tx, c.ID, c.History); err != nil {
			return err
		}
		return tx.Commit()
	})
}

func writeHistory(ctx context.Context, tx *sql.Tx, id string, history []canary.HistoryEntry) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM canary_history WHERE canary_id = ?`, id); err != nil {
		return err
	}
	// history is stored most-recent-first; seq descends so ORDER BY seq
	// DESC reproduces that order on read.
	seq := len(history)
	for _, h := range history {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO canary_history (canary_id, seq, at, comment) VALUES (?, ?, ?, ?)`,
			id, seq, h.When.UTC().Format(timeLayout), h.Comment,
		); err != nil {
			return err
		}
		seq--
	}
	return nil
}

func readHistory(ctx context.Context, q interface {
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
}, id string) ([]canary.HistoryEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT at, comment FROM canary_history WHERE canary_id = ? ORDER BY seq DESC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []canary.HistoryEntry
	for rows.Next() {
		var at, comment string
		if err := rows.Scan(&at, &comment); err != nil {
			return nil, err
		}
		t, _ := time.Parse(timeLayout, at)
		out = append(out, canary.HistoryEntry{When: t, Comment: comment})
	}
	return out, rows.Err()
}

func isCollision(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *SQLStore) Update(ctx context.Context, id string, patch canary.Patch) error {
	return retry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		row := tx.QueryRowContext(ctx, `SELECT 1 FROM canaries WHERE id = ?`, id)
		var one int
		if err := row.Scan(&one); err != nil {
			if err == sql.ErrNoRows {
				return ErrNotFound
			}
			return err
		}

		var sets []string
		var args []any
		if v, ok := patch.Name.IsSet(); ok {
			sets = append(sets, "name = ?")
			args = append(args, v)
		}
		if v, ok := patch.Slug.IsSet(); ok {
			sets = append(sets, "slug = ?")
			args = append(args, v)
		}
		if v, ok := patch.Description.IsSet(); ok {
			sets = append(sets, "description = ?")
			args = append(args, v)
		}
		if v, ok := patch.Periodicity.IsSet(); ok {
			sets = append(sets, "periodicity = ?")
			args = append(args, v)
		}
		if v, ok := patch.Emails.IsSet(); ok {
			sets = append(sets, "emails = ?")
			args = append(args, emailsToJSON(v))
		}
		if v, ok := patch.Paused.IsSet(); ok {
			sets = append(sets, "paused = ?")
			args = append(args, boolToInt(v))
		}
		if v, ok := patch.Late.IsSet(); ok {
			sets = append(sets, "late = ?")
			args = append(args, boolToInt(v))
		}
		if v, ok := patch.Deadline.IsSet(); ok {
			sets = append(sets, "deadline = ?")
			args = append(args, v.UTC().Format(timeLayout))
		} else if patch.Deadline.IsClear() {
			sets = append(sets, "deadline = NULL")
		}
		if len(sets) > 0 {
			args = append(args, id)
			q := fmt.Sprintf("UPDATE canaries SET %s WHERE id = ?", strings.Join(sets, ", "))
			if _, err := tx.ExecContext(ctx, q, args...); err != nil {
				if isCollision(err) {
					return ErrCollision
				}
				return err
			}
		}
		if v, ok := patch.History.IsSet(); ok {
			if err := writeHistory(ctx, tx, id, v); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

func (s *SQLStore) Get(ctx context.Context, id string) (*canary.Canary, error) {
	var out *canary.Canary
	err := retry(ctx, func() error {
		c, err := scanCanary(ctx, s.db, "WHERE id = ?", id)
		if err != nil {
			return err
		}
		out = c
		return nil
	})
	return out, err
}

func scanCanary(ctx context.Context, db *sql.DB, where string, args ...any) (*canary.Canary, error) {
	row := db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT id, slug, name, description, periodicity, emails, paused, late, deadline
		FROM canaries %s`, where), args...)
	var (
		c         canary.Canary
		emails    string
		paused    int
		late      int
		deadline  sql.NullString
	)
	if err := row.Scan(&c.ID, &c.Slug, &c.Name, &c.Description, &c.Periodicity, &emails, &paused, &late, &deadline); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	c.Emails = emailsFromJSON(emails)
	c.Paused = paused != 0
	c.Late = late != 0
	if deadline.Valid {
		t, _ := time.Parse(timeLayout, deadline.String)
		c.Deadline = t
		c.HasDeadline = true
	}
	history, err := readHistory(ctx, db, c.ID)
	if err != nil {
		return nil, err
	}
	c.History = history
	return &c, nil
}

func (s *SQLStore) List(ctx context.Context, filter ListFilter) ([]*canary.Canary, error) {
	var out []*canary.Canary
	err := retry(ctx, func() error {
		var where []string
		var args []any
		if filter.Paused != nil {
			where = append(where, "paused = ?")
			args = append(args, boolToInt(*filter.Paused))
		}
		if filter.Late != nil {
			where = append(where, "late = ?")
			args = append(args, boolToInt(*filter.Late))
		}
		clause := ""
		if len(where) > 0 {
			clause = "WHERE " + strings.Join(where, " AND ")
		}
		rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT id FROM canaries %s ORDER BY id`, clause), args...)
		if err != nil {
			return err
		}
		var ids []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			ids = append(ids, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		var matched []*canary.Canary
		for _, id := range ids {
			c, err := scanCanary(ctx, s.db, "WHERE id = ?", id)
			if err != nil {
				return err
			}
			if filter.matches(c) {
				matched = append(matched, c)
			}
		}
		out = matched
		return nil
	})
	return out, err
}

func (s *SQLStore) UpcomingDeadlines(ctx context.Context) ([]*canary.Canary, error) {
	var out []*canary.Canary
	err := retry(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT id FROM canaries
			WHERE paused = 0 AND late = 0 AND deadline IS NOT NULL
			ORDER BY deadline ASC`)
		if err != nil {
			return err
		}
		var ids []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			ids = append(ids, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		var result []*canary.Canary
		for _, id := range ids {
			c, err := scanCanary(ctx, s.db, "WHERE id = ?", id)
			if err != nil {
				return err
			}
			result = append(result, c)
		}
		out = result
		return nil
	})
	return out, err
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	return retry(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM canaries WHERE id = ?`, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		_, err = s.db.ExecContext(ctx, `DELETE FROM canary_history WHERE canary_id = ?`, id)
		return err
	})
}

func (s *SQLStore) FindIdentifier(ctx context.Context, slug string) (string, error) {
	var id string
	err := retry(ctx, func() error {
		row := s.db.QueryRowContext(ctx, `SELECT id FROM canaries WHERE slug = ?`, slug)
		return row.Scan(&id)
	})
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
