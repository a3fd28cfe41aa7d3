package journal

import (
	"context"
	"fmt"
)

func (s *Store) ensureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return nil
	}
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS journal_entries (
  id TEXT PRIMARY KEY,
  recorded_at TIMESTAMP WITH TIME ZONE NOT NULL,
  conversation_id TEXT NOT NULL DEFAULT '',
  user_text TEXT NOT NULL DEFAULT '',
  response TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_journal_entries_day ON journal_entries ((recorded_at::date));
CREATE INDEX IF NOT EXISTS idx_journal_entries_conversation ON journal_entries (conversation_id);
`)
	})
	return s.schemaErr
}

func (s *Store) appendDB(ctx context.Context, e Entry) error {
	if err := s.ensureSchema(ctx); err != nil {
		return fmt.Errorf("journal schema: %w", err)
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO journal_entries (id, recorded_at, conversation_id, user_text, response)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO NOTHING`,
		e.ID, e.Timestamp, e.ConversationID, e.UserText, e.Response)
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	s.days.Remove(e.day())
	return nil
}

func (s *Store) dayDB(ctx context.Context, date string) ([]Entry, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("journal schema: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, recorded_at, conversation_id, user_text, response
FROM journal_entries
WHERE recorded_at::date = $1::date
ORDER BY recorded_at ASC`, date)
	if err != nil {
		return nil, fmt.Errorf("query journal day: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.ConversationID, &e.UserText, &e.Response); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
