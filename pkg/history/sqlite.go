package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists conversation turns in a local SQLite database,
// standing in for the hosted history service the bot originally used.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS conversation_history (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id    TEXT NOT NULL,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_history_user ON conversation_history (user_id, id);
`

// NewSQLiteStore opens (creating if needed) the history database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history db %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Append implements Store.
func (s *SQLiteStore) Append(userID, role, content string) error {
	_, err := s.db.Exec(
		"INSERT INTO conversation_history (user_id, role, content, created_at) VALUES (?, ?, ?, ?)",
		userID, role, content, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("append history for %q: %w", userID, err)
	}
	return nil
}

// Recent implements Store. Turns come back oldest first.
func (s *SQLiteStore) Recent(userID string, limit int) ([]Turn, error) {
	rows, err := s.db.Query(`
		SELECT role, content FROM (
			SELECT id, role, content FROM conversation_history
			WHERE user_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("load history for %q: %w", userID, err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.Role, &t.Content); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// Clear implements Store.
func (s *SQLiteStore) Clear(userID string) error {
	_, err := s.db.Exec("DELETE FROM conversation_history WHERE user_id = ?", userID)
	if err != nil {
		return fmt.Errorf("clear history for %q: %w", userID, err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
