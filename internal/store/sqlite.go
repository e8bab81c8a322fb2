package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"career-agent/internal/mission"
)

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS missions (
	id                TEXT PRIMARY KEY,
	user_id           TEXT NOT NULL,
	kind              TEXT NOT NULL,
	status            TEXT NOT NULL,
	current_step      TEXT NOT NULL DEFAULT '',
	progress          INTEGER NOT NULL DEFAULT 0,
	input_data        TEXT NOT NULL DEFAULT '{}',
	context           TEXT NOT NULL DEFAULT '{}',
	events            TEXT NOT NULL DEFAULT '[]',
	artifacts         TEXT NOT NULL DEFAULT '[]',
	output_data       TEXT,
	requires_approval INTEGER NOT NULL DEFAULT 0,
	approval_reason   TEXT NOT NULL DEFAULT '',
	feedback          TEXT NOT NULL DEFAULT '',
	error             TEXT NOT NULL DEFAULT '',
	created_at        TEXT NOT NULL,
	updated_at        TEXT NOT NULL,
	completed_at      TEXT
);
CREATE INDEX IF NOT EXISTS idx_missions_user_created ON missions(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_missions_status ON missions(status);
`

const busyRetries = 5

type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the mission database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite3: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLite{db: db}
	for _, q := range []string{"PRAGMA journal_mode=WAL;", "PRAGMA synchronous=NORMAL;"} {
		if _, err := db.ExecContext(ctx, q); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", q, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) Create(ctx context.Context, m *mission.Mission) error {
	input, err := encodeJSON(m.Input, "{}")
	if err != nil {
		return err
	}
	mctx, err := encodeJSON(m.Context, "{}")
	if err != nil {
		return err
	}
	events, err := encodeJSON(m.Events, "[]")
	if err != nil {
		return err
	}
	artifacts, err := encodeJSON(m.Artifacts, "[]")
	if err != nil {
		return err
	}
	output, err := encodeNullableJSON(m.OutputData)
	if err != nil {
		return err
	}
	err = retryOnBusy(ctx, busyRetries, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO missions (id, user_id, kind, status, current_step, progress,
				input_data, context, events, artifacts, output_data,
				requires_approval, approval_reason, feedback, error,
				created_at, updated_at, completed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.UserID, string(m.Kind), string(m.Status), m.CurrentStep, m.Progress,
			input, mctx, events, artifacts, output,
			boolToInt(m.RequiresApproval), m.ApprovalReason, m.Feedback, m.Error,
			formatTime(m.CreatedAt), formatTime(m.UpdatedAt), formatNullableTime(m.CompletedAt))
		return err
	})
	if err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return fmt.Errorf("%w: %s", ErrExists, m.ID)
		}
		return fmt.Errorf("insert mission: %w", err)
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, id string) (*mission.Mission, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, kind, status, current_step, progress,
			input_data, context, events, artifacts, output_data,
			requires_approval, approval_reason, feedback, error,
			created_at, updated_at, completed_at
		FROM missions WHERE id = ?`, id)
	m, err := scanMission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return m, err
}

func (s *SQLite) Update(ctx context.Context, id string, f Fields) error {
	var sets []string
	var args []any
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	addJSON := func(col string, v any, empty string) error {
		enc, err := encodeJSON(v, empty)
		if err != nil {
			return err
		}
		add(col, enc)
		return nil
	}

	if f.Status != nil {
		add("status", string(*f.Status))
	}
	if f.CurrentStep != nil {
		add("current_step", *f.CurrentStep)
	}
	if f.Progress != nil {
		add("progress", *f.Progress)
	}
	if f.Context != nil {
		if err := addJSON("context", *f.Context, "{}"); err != nil {
			return err
		}
	}
	if f.Events != nil {
		if err := addJSON("events", *f.Events, "[]"); err != nil {
			return err
		}
	}
	if f.Artifacts != nil {
		if err := addJSON("artifacts", *f.Artifacts, "[]"); err != nil {
			return err
		}
	}
	if f.OutputData != nil {
		enc, err := encodeNullableJSON(*f.OutputData)
		if err != nil {
			return err
		}
		add("output_data", enc)
	}
	if f.RequiresApproval != nil {
		add("requires_approval", boolToInt(*f.RequiresApproval))
	}
	if f.ApprovalReason != nil {
		add("approval_reason", *f.ApprovalReason)
	}
	if f.Feedback != nil {
		add("feedback", *f.Feedback)
	}
	if f.Error != nil {
		add("error", *f.Error)
	}
	if f.CompletedAt != nil {
		add("completed_at", formatTime(*f.CompletedAt))
	} else if f.ClearCompletedAt {
		add("completed_at", nil)
	}
	updated := time.Now()
	if f.UpdatedAt != nil {
		updated = *f.UpdatedAt
	}
	add("updated_at", formatTime(updated))

	args = append(args, id)
	query := "UPDATE missions SET " + strings.Join(sets, ", ") + " WHERE id = ?"

	var affected int64
	err := retryOnBusy(ctx, busyRetries, func() error {
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("update mission %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *SQLite) List(ctx context.Context, filter Filter) ([]mission.Summary, error) {
	var where []string
	var args []any
	if filter.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	query := `SELECT id, user_id, kind, status, current_step, progress,
		requires_approval, error, created_at, completed_at FROM missions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, filter.limit(), filter.offset())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list missions: %w", err)
	}
	defer rows.Close()

	out := []mission.Summary{}
	for rows.Next() {
		var (
			sum         mission.Summary
			kind, st    string
			approval    int
			created     string
			completedAt sql.NullString
		)
		if err := rows.Scan(&sum.ID, &sum.UserID, &kind, &st, &sum.CurrentStep, &sum.Progress,
			&approval, &sum.Error, &created, &completedAt); err != nil {
			return nil, fmt.Errorf("scan mission summary: %w", err)
		}
		sum.Kind = mission.Kind(kind)
		sum.Status = mission.Status(st)
		sum.RequiresApproval = approval != 0
		if sum.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		if sum.CompletedAt, err = parseNullableTime(completedAt); err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMission(row rowScanner) (*mission.Mission, error) {
	var (
		m                              mission.Mission
		kind, st                       string
		input, mctx, events, artifacts string
		output, completedAt            sql.NullString
		approval                       int
		created, updated               string
	)
	if err := row.Scan(&m.ID, &m.UserID, &kind, &st, &m.CurrentStep, &m.Progress,
		&input, &mctx, &events, &artifacts, &output,
		&approval, &m.ApprovalReason, &m.Feedback, &m.Error,
		&created, &updated, &completedAt); err != nil {
		return nil, err
	}
	m.Kind = mission.Kind(kind)
	m.Status = mission.Status(st)
	m.RequiresApproval = approval != 0

	decode := func(col, raw string, dst any) error {
		if err := json.Unmarshal([]byte(raw), dst); err != nil {
			return fmt.Errorf("decode %s for mission %s: %w", col, m.ID, err)
		}
		return nil
	}
	if err := decode("input_data", input, &m.Input); err != nil {
		return nil, err
	}
	if err := decode("context", mctx, &m.Context); err != nil {
		return nil, err
	}
	if err := decode("events", events, &m.Events); err != nil {
		return nil, err
	}
	if err := decode("artifacts", artifacts, &m.Artifacts); err != nil {
		return nil, err
	}
	if output.Valid {
		if err := decode("output_data", output.String, &m.OutputData); err != nil {
			return nil, err
		}
	}
	if m.Events == nil {
		m.Events = []mission.Event{}
	}
	if m.Artifacts == nil {
		m.Artifacts = []mission.Artifact{}
	}

	var err error
	if m.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if m.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	if m.CompletedAt, err = parseNullableTime(completedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

// retryOnBusy retries f while SQLite reports BUSY or LOCKED, backing off
// exponentially with jitter.
func retryOnBusy(ctx context.Context, maxRetries int, f func() error) error {
	const baseDelay = 50 * time.Millisecond
	const maxDelay = 500 * time.Millisecond

	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = f()
		if err == nil || !isBusy(err) || attempt == maxRetries {
			return err
		}
		delay := baseDelay << uint(attempt)
		if delay > maxDelay {
			delay = maxDelay
		}
		jitter := time.Duration(rand.IntN(int(delay / 2)))
		delay = delay - delay/4 + jitter

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

func isBusy(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	return false
}

func encodeJSON(v any, empty string) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode json: %w", err)
	}
	if string(b) == "null" {
		return empty, nil
	}
	return string(b), nil
}

func encodeNullableJSON(v map[string]any) (any, error) {
	if v == nil {
		return nil, nil
	}
	enc, err := encodeJSON(v, "{}")
	if err != nil {
		return nil, err
	}
	return enc, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", raw, err)
	}
	return t, nil
}

func parseNullableTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
