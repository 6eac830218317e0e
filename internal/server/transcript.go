package server

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/comigor/chatsync-go/internal/history"
	"github.com/comigor/chatsync-go/internal/logger"
)

// Transcript is the server's authoritative record of each user's conversation.
type Transcript interface {
	List(ctx context.Context, userID string) ([]history.Message, error)
	Append(ctx context.Context, msgs ...history.Message) error
}

// MemoryTranscript keeps transcripts in process memory.
type MemoryTranscript struct {
	mu   sync.Mutex
	msgs map[string][]history.Message
}

// NewMemoryTranscript returns an empty MemoryTranscript.
func NewMemoryTranscript() *MemoryTranscript {
	return &MemoryTranscript{msgs: make(map[string][]history.Message)}
}

func (m *MemoryTranscript) List(_ context.Context, userID string) ([]history.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]history.Message, len(m.msgs[userID]))
	copy(out, m.msgs[userID])
	return out, nil
}

func (m *MemoryTranscript) Append(_ context.Context, msgs ...history.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range msgs {
		m.msgs[msg.UserID] = append(m.msgs[msg.UserID], msg)
	}
	return nil
}

// SQLiteTranscript stores transcripts in a sqlite table.
type SQLiteTranscript struct {
	db *sql.DB
}

// OpenTranscript opens the sqlite transcript at path. If the database cannot
// be opened or prepared it logs a warning and returns an in-memory transcript,
// so the server still answers (without durability).
func OpenTranscript(path string) Transcript {
	t, err := NewSQLiteTranscript(path)
	if err != nil {
		logger.L.Warn("sqlite open failed; using in-memory transcript", "error", err)
		return NewMemoryTranscript()
	}
	return t
}

// NewSQLiteTranscript opens or creates the transcript database at path.
func NewSQLiteTranscript(path string) (*SQLiteTranscript, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_busy_timeout=10000")
	if err != nil {
		return nil, fmt.Errorf("open transcript db: %w", err)
	}
	if _, err = db.Exec(`CREATE TABLE IF NOT EXISTS messages (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        user_id TEXT NOT NULL,
        role TEXT NOT NULL,
        content TEXT NOT NULL,
        created_at DATETIME NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_messages_user ON messages(user_id, id);`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create messages table: %w", err)
	}
	logger.L.Info("sqlite transcript DB initialized", "path", path)
	return &SQLiteTranscript{db: db}, nil
}

// List returns all messages of a user in chronological order.
func (s *SQLiteTranscript) List(ctx context.Context, userID string) ([]history.Message, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT role, content, created_at FROM messages WHERE user_id = ? ORDER BY id ASC;`, userID)
	if err != nil {
		return nil, fmt.Errorf("query transcript: %w", err)
	}
	defer rows.Close()

	out := []history.Message{}
	for rows.Next() {
		var (
			role, content string
			createdAt     time.Time
		)
		if err := rows.Scan(&role, &content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan transcript row: %w", err)
		}
		out = append(out, history.Message{Role: history.Role(role), Content: content, UserID: userID, Timestamp: createdAt})
	}
	return out, rows.Err()
}

// Append stores msgs in one transaction.
func (s *SQLiteTranscript) Append(ctx context.Context, msgs ...history.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, m := range msgs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO messages (user_id, role, content, created_at) VALUES (?,?,?,?);`,
			m.UserID, string(m.Role), m.Content, m.Timestamp.UTC()); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}
	return tx.Commit()
}

// Close closes the database.
func (s *SQLiteTranscript) Close() error {
	return s.db.Close()
}
