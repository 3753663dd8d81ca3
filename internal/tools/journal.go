package tools

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

const journalSchema = `
CREATE TABLE IF NOT EXISTS journal_entries (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	body       TEXT NOT NULL,
	mood       TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_journal_user_created
	ON journal_entries (user_id, created_at DESC);
`

// Journal is a SQLite-backed journal store shared by the journal tools.
type Journal struct {
	db  *sql.DB
	now func() time.Time
}

// OpenJournal opens (creating if needed) the journal database at path.
// Use ":memory:" for an ephemeral store.
func OpenJournal(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}
	// modernc sqlite serializes at the driver level; a single conn keeps
	// in-memory databases from vanishing between pool connections.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(journalSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init journal schema: %w", err)
	}
	return &Journal{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error { return j.db.Close() }

type journalEntry struct {
	ID        string
	Body      string
	Mood      string
	CreatedAt time.Time
}

func (j *Journal) save(ctx context.Context, userID, body, mood, key string) (string, bool, error) {
	// The idempotency key doubles as the row id, so a retried save after a
	// timeout lands on the same row instead of duplicating the entry.
	id := key
	if id == "" {
		id = uuid.New().String()
	}
	res, err := j.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO journal_entries (id, user_id, body, mood, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		id, userID, body, mood, j.now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", false, err
	}
	n, _ := res.RowsAffected()
	return id, n > 0, nil
}

func (j *Journal) query(ctx context.Context, userID, match string, limit int) ([]journalEntry, error) {
	q := `SELECT id, body, mood, created_at FROM journal_entries WHERE user_id = ?`
	args := []any{userID}
	if match != "" {
		q += ` AND body LIKE ?`
		args = append(args, "%"+match+"%")
	}
	q += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []journalEntry
	for rows.Next() {
		var e journalEntry
		var created string
		if err := rows.Scan(&e.ID, &e.Body, &e.Mood, &created); err != nil {
			return nil, err
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339, created)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func entriesResult(entries []journalEntry) map[string]any {
	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, map[string]any{
			"id":         e.ID,
			"body":       e.Body,
			"mood":       e.Mood,
			"created_at": e.CreatedAt.Format(time.RFC3339),
		})
	}
	return map[string]any{"entries": out, "count": len(out)}
}

// ── journal.save ────────────────────────────────────────────

// JournalSave persists a journal entry.
type JournalSave struct {
	journal *Journal
}

// NewJournalSave creates the journal.save tool.
func NewJournalSave(j *Journal) *JournalSave { return &JournalSave{journal: j} }

func (t *JournalSave) Name() string     { return "journal.save" }
func (t *JournalSave) Idempotent() bool { return false }

// Invoke saves an entry. Args: user_id, body, mood (optional),
// idempotency_key (injected by the executor). Result: entry_id, created.
func (t *JournalSave) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	body, err := stringArg(args, "body")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("%w: body must not be blank", ErrInvalidArgs)
	}
	userID := optStringArg(args, "user_id", "default")
	mood := optStringArg(args, "mood", "")
	key := optStringArg(args, "idempotency_key", "")

	id, created, err := t.journal.save(ctx, userID, body, mood, key)
	if err != nil {
		return nil, err
	}
	return map[string]any{"entry_id": id, "created": created}, nil
}

// ── journal.search ──────────────────────────────────────────

// JournalSearch searches past entries by substring.
type JournalSearch struct {
	journal *Journal
}

// NewJournalSearch creates the journal.search tool.
func NewJournalSearch(j *Journal) *JournalSearch { return &JournalSearch{journal: j} }

func (t *JournalSearch) Name() string     { return "journal.search" }
func (t *JournalSearch) Idempotent() bool { return true }

// Invoke searches entries. Args: user_id, query, limit (default 5).
func (t *JournalSearch) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	query, err := stringArg(args, "query")
	if err != nil {
		return nil, err
	}
	userID := optStringArg(args, "user_id", "default")
	limit := intArg(args, "limit", 5)

	entries, err := t.journal.query(ctx, userID, query, limit)
	if err != nil {
		return nil, err
	}
	return entriesResult(entries), nil
}

// ── journal.recent ──────────────────────────────────────────

// JournalRecent returns the most recent entries.
type JournalRecent struct {
	journal *Journal
}

// NewJournalRecent creates the journal.recent tool.
func NewJournalRecent(j *Journal) *JournalRecent { return &JournalRecent{journal: j} }

func (t *JournalRecent) Name() string     { return "journal.recent" }
func (t *JournalRecent) Idempotent() bool { return true }

// Invoke lists recent entries. Args: user_id, limit (default 5).
func (t *JournalRecent) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	userID := optStringArg(args, "user_id", "default")
	limit := intArg(args, "limit", 5)

	entries, err := t.journal.query(ctx, userID, "", limit)
	if err != nil {
		return nil, err
	}
	return entriesResult(entries), nil
}
