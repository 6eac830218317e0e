// Package history holds the chat message model, the merge rules used to
// reconcile remote and cached transcripts, and the local cache itself.
//
// The cache never fails outward: if the backing store is unavailable or its
// contents are corrupted, reads come back empty and writes are dropped after
// being logged. The in-memory view stays authoritative for the session.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/comigor/chatsync-go/internal/kv"
	"github.com/comigor/chatsync-go/internal/logger"
)

// Keys used in the backing stores.
const (
	HistoryKey = "chatHistory"
	UserIDKey  = "userId"
)

// PersistenceError reports a failed cache operation.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Store is the local conversation cache. The message list lives in a
// session-scoped kv.Store, the user id in a profile-scoped one.
type Store struct {
	mu      sync.Mutex
	session kv.Store
	profile kv.Store
	userID  string
	newID   func() string
	log     *slog.Logger
}

// NewStore returns a Store over the given session and profile stores.
func NewStore(session, profile kv.Store) *Store {
	return &Store{
		session: session,
		profile: profile,
		newID:   func() string { return "user_" + uuid.NewString() },
	}
}

// WithLogger makes the store log to l instead of the global logger.
func (s *Store) WithLogger(l *slog.Logger) *Store {
	s.log = l
	return s
}

func (s *Store) logger() *slog.Logger {
	if s.log != nil {
		return s.log
	}
	return logger.L
}

// UserID returns the profile's user id, generating and saving one when the
// profile has none. A stored id is never overwritten: if it cannot be read,
// a session-local id is used and nothing is written. Once known, the id does
// not change for the life of the Store.
func (s *Store) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.userID != "" {
		return s.userID
	}

	id, err := s.profile.Get(UserIDKey)
	switch {
	case err == nil && id != "":
		s.userID = id
		return id
	case err != nil && !errors.Is(err, kv.ErrNotFound):
		// The stored id may still exist; use a session-local one without
		// touching the profile.
		s.logFailure(&PersistenceError{Op: "read", Key: UserIDKey, Err: err})
		s.userID = s.newID()
		s.logger().Warn("using session-local user id", "userId", s.userID)
		return s.userID
	}

	id = s.newID()
	if err := s.profile.Set(UserIDKey, id); err != nil {
		s.logFailure(&PersistenceError{Op: "write", Key: UserIDKey, Err: err})
	}
	s.userID = id
	s.logger().Info("generated user id", "userId", id)
	return id
}

// ReadAll returns the cached messages, or an empty list when nothing usable
// is stored.
func (s *Store) ReadAll() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs, err := s.read()
	if err != nil {
		s.logFailure(err)
		return []Message{}
	}
	return msgs
}

// Append adds msg to the cached list. The list is rewritten in one write, so
// a failure leaves the previous contents in place.
func (s *Store) Append(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs, err := s.read()
	if err != nil {
		s.logFailure(err)
		return
	}
	if err := s.write(append(msgs, msg)); err != nil {
		s.logFailure(err)
	}
}

// Replace overwrites the cached list with msgs.
func (s *Store) Replace(msgs []Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.write(msgs); err != nil {
		s.logFailure(err)
	}
}

// Clear drops the cached messages. The user id is kept.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.session.Remove(HistoryKey); err != nil {
		s.logFailure(&PersistenceError{Op: "clear", Key: HistoryKey, Err: err})
	}
}

// read returns an error only when the store itself could not be read.
// Corrupted contents are logged and read as empty.
func (s *Store) read() ([]Message, error) {
	raw, err := s.session.Get(HistoryKey)
	if errors.Is(err, kv.ErrNotFound) {
		return []Message{}, nil
	}
	if err != nil {
		return nil, &PersistenceError{Op: "read", Key: HistoryKey, Err: err}
	}

	var msgs []Message
	if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
		s.logFailure(&PersistenceError{Op: "decode", Key: HistoryKey, Err: err})
		return []Message{}, nil
	}
	return DropEmpty(msgs), nil
}

func (s *Store) write(msgs []Message) error {
	if msgs == nil {
		msgs = []Message{}
	}
	b, err := json.Marshal(msgs)
	if err != nil {
		return &PersistenceError{Op: "encode", Key: HistoryKey, Err: err}
	}
	if err := s.session.Set(HistoryKey, string(b)); err != nil {
		return &PersistenceError{Op: "write", Key: HistoryKey, Err: err}
	}
	return nil
}

func (s *Store) logFailure(err error) {
	s.logger().Warn("local history unavailable", "error", err)
}
