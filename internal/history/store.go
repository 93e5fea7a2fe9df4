// Package history keeps a local log of connect, load and disconnect outcomes.
// Credentials are never stored, only a short fingerprint of them.
package history

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/janekbaraniewski/integrationdeck/internal/core"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/blake2b"
)

const (
	defaultListLimit = 50
	// Fixed width so lexical order in SQLite matches time order.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

type Entry struct {
	ID                    string
	OccurredAt            time.Time
	Kind                  core.ActivityKind
	Provider              string
	User                  string
	Org                   string
	Outcome               core.ActivityOutcome
	Message               string
	RecordCount           int
	CredentialFingerprint string
}

type Filter struct {
	Provider string
	Limit    int
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func OpenStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("history: creating DB dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("history: opening DB: %w", err)
	}
	if err := configureSQLiteConnection(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: configure DB: %w", err)
	}

	store := NewStore(db)
	if err := store.Init(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS activity_events (
			event_id TEXT PRIMARY KEY,
			occurred_at TEXT NOT NULL,
			kind TEXT NOT NULL,
			provider TEXT NOT NULL,
			user_id TEXT NOT NULL,
			org_id TEXT NOT NULL,
			outcome TEXT NOT NULL,
			message TEXT,
			record_count INTEGER NOT NULL DEFAULT 0,
			credential_fingerprint TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_activity_events_occurred_at ON activity_events(occurred_at);`,
		`CREATE INDEX IF NOT EXISTS idx_activity_events_provider ON activity_events(provider, occurred_at);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("history: init schema: %w", err)
		}
	}
	return nil
}

// Record appends one activity.
func (s *Store) Record(ctx context.Context, a core.Activity) (Entry, error) {
	entry := Entry{
		ID:          uuid.NewString(),
		OccurredAt:  a.OccurredAt.UTC(),
		Kind:        a.Kind,
		Provider:    a.Provider,
		User:        a.Identity.User,
		Org:         a.Identity.Org,
		Outcome:     a.Outcome,
		Message:     a.Message,
		RecordCount: a.RecordCount,
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = s.now().UTC()
	}
	if a.Credentials != nil {
		entry.CredentialFingerprint = Fingerprint(*a.Credentials)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity_events (
			event_id, occurred_at, kind, provider, user_id, org_id,
			outcome, message, record_count, credential_fingerprint
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.OccurredAt.Format(timeLayout),
		string(entry.Kind),
		entry.Provider,
		entry.User,
		entry.Org,
		string(entry.Outcome),
		nullIfEmpty(entry.Message),
		entry.RecordCount,
		nullIfEmpty(entry.CredentialFingerprint),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("history: insert activity: %w", err)
	}
	return entry, nil
}

// List returns the newest entries first.
func (s *Store) List(ctx context.Context, filter Filter) ([]Entry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `SELECT event_id, occurred_at, kind, provider, user_id, org_id, outcome,
		COALESCE(message, ''), record_count, COALESCE(credential_fingerprint, '')
		FROM activity_events`
	args := []any{}
	if p := strings.TrimSpace(filter.Provider); p != "" {
		query += ` WHERE provider = ? COLLATE NOCASE`
		args = append(args, p)
	}
	query += ` ORDER BY occurred_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: list activity: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e          Entry
			occurredAt string
			kind       string
			outcome    string
		)
		if err := rows.Scan(&e.ID, &occurredAt, &kind, &e.Provider, &e.User, &e.Org, &outcome, &e.Message, &e.RecordCount, &e.CredentialFingerprint); err != nil {
			return nil, fmt.Errorf("history: scan activity: %w", err)
		}
		e.Kind = core.ActivityKind(kind)
		e.Outcome = core.ActivityOutcome(outcome)
		if ts, err := time.Parse(timeLayout, occurredAt); err == nil {
			e.OccurredAt = ts
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate activity: %w", err)
	}
	return out, nil
}

// Prune deletes entries older than retention and returns how many went.
func (s *Store) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	cutoff := s.now().UTC().Add(-retention).Format(timeLayout)
	res, err := s.db.ExecContext(ctx, `DELETE FROM activity_events WHERE occurred_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("history: prune activity: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Recorder adapts the store to the session's activity callback. Failures are
// logged; history must never break a connect or load.
func (s *Store) Recorder(ctx context.Context) func(core.Activity) {
	return func(a core.Activity) {
		if _, err := s.Record(ctx, a); err != nil {
			log.Warn().Err(err).Str("component", "history").Msg("record activity failed")
		}
	}
}

// Fingerprint identifies a bundle without revealing it.
func Fingerprint(bundle core.CredentialBundle) string {
	sum := blake2b.Sum256([]byte(bundle.Encoded()))
	return hex.EncodeToString(sum[:6])
}

func nullIfEmpty(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
