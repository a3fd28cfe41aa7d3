// Package journal persists one record per conversational turn: the
// user's words plus the assistant's response. Entries are grouped by
// calendar day, which is how the review endpoints read them back.
package journal

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Entry is one journaled turn.
type Entry struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	ConversationID string    `json:"conversation_id"`
	UserText       string    `json:"user_text,omitempty"`
	Response       string    `json:"response"`
}

const dayFormat = "2006-01-02"

func (e Entry) day() string {
	return e.Timestamp.UTC().Format(dayFormat)
}

// Store keeps journal entries in per-day JSONL files, or in Postgres when
// a DSN is configured. Day reads go through a small LRU so the review
// endpoints don't re-parse the same file on every request.
type Store struct {
	dir string
	db  *sql.DB

	mu   sync.Mutex
	days *lru.Cache[string, []Entry]

	schemaOnce sync.Once
	schemaErr  error
}

func New(dir string) *Store {
	days, _ := lru.New[string, []Entry](32)
	return &Store{dir: dir, days: days}
}

func NewPostgres(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	days, _ := lru.New[string, []Entry](32)
	return &Store{db: db, days: days}, nil
}

// NewFromEnv prefers Postgres when JOURNAL_STORE_PG_DSN is set and
// reachable, falling back to the file backend under dir.
func NewFromEnv(dir, dsn string) *Store {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return New(dir)
	}
	s, err := NewPostgres(dsn)
	if err != nil {
		return New(dir)
	}
	return s
}

// Append stores one entry, filling ID and timestamp when unset.
func (s *Store) Append(ctx context.Context, e Entry) error {
	if s == nil {
		return nil
	}
	if strings.TrimSpace(e.ID) == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	e.ConversationID = strings.TrimSpace(e.ConversationID)

	if s.db != nil {
		return s.appendDB(ctx, e)
	}
	return s.appendFile(e)
}

// Day returns the entries recorded on date (YYYY-MM-DD), oldest first.
func (s *Store) Day(ctx context.Context, date string) ([]Entry, error) {
	if s == nil {
		return nil, nil
	}
	date = strings.TrimSpace(date)
	if date == "" {
		date = time.Now().UTC().Format(dayFormat)
	}
	if cached, ok := s.days.Get(date); ok {
		return cached, nil
	}

	var (
		entries []Entry
		err     error
	)
	if s.db != nil {
		entries, err = s.dayDB(ctx, date)
	} else {
		entries, err = s.dayFile(date)
	}
	if err != nil {
		return nil, err
	}
	s.days.Add(date, entries)
	return entries, nil
}

// Conversation returns every entry for one conversation on date.
func (s *Store) Conversation(ctx context.Context, date, conversationID string) ([]Entry, error) {
	all, err := s.Day(ctx, date)
	if err != nil {
		return nil, err
	}
	id := strings.TrimSpace(conversationID)
	out := make([]Entry, 0, len(all))
	for _, e := range all {
		if e.ConversationID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

// Record satisfies the orchestrator's journal sink.
func (s *Store) Record(ctx context.Context, conversationID, userText, response string) error {
	return s.Append(ctx, Entry{
		ConversationID: conversationID,
		UserText:       userText,
		Response:       response,
	})
}

// Close releases the database handle when one is open.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
