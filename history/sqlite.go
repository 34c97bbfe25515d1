package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteStore keeps transcripts in a local database file, one row per key.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS chat_history (
		key TEXT PRIMARY KEY,
		messages TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating history table: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) Get(ctx context.Context, documentID string) ([]Message, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT messages FROM chat_history WHERE key = ?", Key(documentID)).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []Message{}, nil
		}
		return nil, fmt.Errorf("query chat history: %w", err)
	}
	return decodeMessages([]byte(raw))
}

func (s *SQLiteStore) Put(ctx context.Context, documentID string, messages []Message) error {
	raw, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("encode chat history: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_history (key, messages) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET messages = excluded.messages
	`, Key(documentID), string(raw)); err != nil {
		return fmt.Errorf("save chat history: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context, documentID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM chat_history WHERE key = ?", Key(documentID)); err != nil {
		return fmt.Errorf("delete chat history: %w", err)
	}
	return nil
}

var _ Store = (*SQLiteStore)(nil)
