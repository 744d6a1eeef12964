// Package store persists reminders and seen announcement links in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"relaybot/relay"
)

const schema = `
CREATE TABLE IF NOT EXISTS reminders (
	seq               INTEGER PRIMARY KEY AUTOINCREMENT,
	id                TEXT NOT NULL UNIQUE,
	target_channel    TEXT NOT NULL,
	target_message_id TEXT NOT NULL,
	content           TEXT NOT NULL,
	attachments       TEXT NOT NULL DEFAULT '',
	scheduled_at      INTEGER NOT NULL,
	posted            INTEGER NOT NULL DEFAULT 0,
	created_by        TEXT NOT NULL,
	created_at        INTEGER NOT NULL,
	updated_at        INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reminders_due ON reminders(posted, scheduled_at);

CREATE TABLE IF NOT EXISTS infos (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	type       TEXT NOT NULL,
	url        TEXT NOT NULL UNIQUE,
	posted     INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// Store is the durable work-item collection shared by the schedulers and the
// registration front-end.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the SQLite database at path and applies the
// schema.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("database path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	_, _ = db.Exec("PRAGMA busy_timeout = 5000")

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	logger.Info("store opened", "path", path)
	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// InsertReminder validates and persists a new reminder, assigning its id and
// timestamps. The reminder is stored with posted=false.
func (s *Store) InsertReminder(ctx context.Context, r *relay.Reminder) (string, error) {
	if err := validateReminder(r); err != nil {
		return "", err
	}

	now := time.Now()
	r.ID = uuid.NewString()
	r.Posted = false
	r.CreatedAt = now
	r.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reminders(id, target_channel, target_message_id, content, attachments, scheduled_at, posted, created_by, created_at, updated_at)
		 VALUES(?,?,?,?,?,?,0,?,?,?)`,
		r.ID, r.TargetChannel, r.TargetMessageID, r.Content, r.Attachments,
		r.ScheduledAt.UnixMilli(), r.CreatedBy, now.UnixMilli(), now.UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("insert reminder: %w", err)
	}

	s.logger.Info("reminder saved", "id", r.ID, "channel", r.TargetChannel, "scheduled_at", r.ScheduledAt.Format(time.RFC3339))
	return r.ID, nil
}

func validateReminder(r *relay.Reminder) error {
	switch {
	case r == nil:
		return &relay.ValidationError{Field: "reminder", Reason: "missing"}
	case strings.TrimSpace(r.TargetChannel) == "":
		return &relay.ValidationError{Field: "target_channel", Reason: "required"}
	case strings.TrimSpace(r.TargetMessageID) == "":
		return &relay.ValidationError{Field: "target_message_id", Reason: "required"}
	case strings.TrimSpace(r.Content) == "":
		return &relay.ValidationError{Field: "content", Reason: "required"}
	case strings.TrimSpace(r.CreatedBy) == "":
		return &relay.ValidationError{Field: "created_by", Reason: "required"}
	}
	return nil
}

// DueReminders returns all unposted reminders whose scheduled time is at or
// before now, in insertion order.
func (s *Store) DueReminders(ctx context.Context, now time.Time) ([]*relay.Reminder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, target_channel, target_message_id, content, attachments, scheduled_at, posted, created_by, created_at, updated_at
		 FROM reminders
		 WHERE posted = 0 AND scheduled_at <= ?
		 ORDER BY seq`,
		now.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("query due reminders: %w", err)
	}
	defer rows.Close()

	var out []*relay.Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan due reminders: %w", err)
	}
	return out, nil
}

// ReminderByID loads one reminder. Returns relay.ErrNotFound on a miss.
func (s *Store) ReminderByID(ctx context.Context, id string) (*relay.Reminder, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, target_channel, target_message_id, content, attachments, scheduled_at, posted, created_by, created_at, updated_at
		 FROM reminders WHERE id = ?`, id)
	r, err := scanReminder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, relay.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// MarkReminderPosted flips posted to true. Marking an already-posted reminder
// (or an unknown id) is a no-op, not an error.
func (s *Store) MarkReminderPosted(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE reminders SET posted = 1, updated_at = ? WHERE id = ? AND posted = 0`,
		time.Now().UnixMilli(), id,
	)
	if err != nil {
		return fmt.Errorf("mark reminder posted: %w", err)
	}
	return nil
}

// DeleteReminder removes a reminder by id. An unknown id deletes zero rows and
// reports deleted=false; that is expected, not an error.
func (s *Store) DeleteReminder(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete reminder: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete reminder: %w", err)
	}
	s.logger.Info("reminder delete", "id", id, "deleted", n)
	return n > 0, nil
}

// InsertSeenLink validates and persists a newly-handled announcement link.
func (s *Store) InsertSeenLink(ctx context.Context, l *relay.SeenLink) (string, error) {
	if l == nil || strings.TrimSpace(l.URL) == "" {
		return "", &relay.ValidationError{Field: "url", Reason: "required"}
	}
	if !l.Type.Valid() {
		return "", &relay.ValidationError{Field: "type", Reason: fmt.Sprintf("unknown category %q", l.Type)}
	}

	now := time.Now()
	l.ID = uuid.NewString()
	l.CreatedAt = now
	l.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO infos(id, type, url, posted, created_at, updated_at) VALUES(?,?,?,?,?,?)`,
		l.ID, string(l.Type), l.URL, boolToInt(l.Posted), now.UnixMilli(), now.UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("insert seen link: %w", err)
	}
	return l.ID, nil
}

// SeenLinkByURL looks up a link by exact URL. Returns relay.ErrNotFound on a
// miss.
func (s *Store) SeenLinkByURL(ctx context.Context, url string) (*relay.SeenLink, error) {
	var (
		l                    relay.SeenLink
		typ                  string
		posted               int
		createdMS, updatedMS int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, type, url, posted, created_at, updated_at FROM infos WHERE url = ?`, url,
	).Scan(&l.ID, &typ, &l.URL, &posted, &createdMS, &updatedMS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, relay.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query seen link: %w", err)
	}
	l.Type = relay.Category(typ)
	l.Posted = posted != 0
	l.CreatedAt = time.UnixMilli(createdMS)
	l.UpdatedAt = time.UnixMilli(updatedMS)
	return &l, nil
}

// IsNotFound checks if an error indicates a record was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, relay.ErrNotFound)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReminder(row rowScanner) (*relay.Reminder, error) {
	var (
		r                                 relay.Reminder
		posted                            int
		scheduledMS, createdMS, updatedMS int64
	)
	err := row.Scan(&r.ID, &r.TargetChannel, &r.TargetMessageID, &r.Content, &r.Attachments,
		&scheduledMS, &posted, &r.CreatedBy, &createdMS, &updatedMS)
	if err != nil {
		return nil, err
	}
	r.ScheduledAt = time.UnixMilli(scheduledMS)
	r.Posted = posted != 0
	r.CreatedAt = time.UnixMilli(createdMS)
	r.UpdatedAt = time.UnixMilli(updatedMS)
	return &r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
