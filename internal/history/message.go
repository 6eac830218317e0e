package history

import (
	"encoding/json"
	"time"
)

// Role is the logical speaker of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// FailureNotice is the content of the assistant message shown in place of a
// reply when sending fails.
const FailureNotice = "Sorry, there was an error processing your message."

// Message is a single chat turn. Messages are values: a change produces a new
// Message, existing ones are never patched.
type Message struct {
	Role      Role
	Content   string
	UserID    string
	Timestamp time.Time
	// Synthetic marks messages generated locally (failure notices) rather
	// than received from the conversation service.
	Synthetic bool
}

// NewUserMessage builds a user turn stamped with now.
func NewUserMessage(content, userID string, now time.Time) Message {
	return Message{Role: RoleUser, Content: content, UserID: userID, Timestamp: now}
}

// NewAssistantMessage builds an assistant turn stamped with now.
func NewAssistantMessage(content, userID string, now time.Time) Message {
	return Message{Role: RoleAssistant, Content: content, UserID: userID, Timestamp: now}
}

// NewFailureNotice builds the synthetic assistant turn used when a send fails.
func NewFailureNotice(userID string, now time.Time) Message {
	m := NewAssistantMessage(FailureNotice, userID, now)
	m.Synthetic = true
	return m
}

// Sender is the display alias of Role: "user" or "ai".
func (m Message) Sender() string {
	if m.Role == RoleUser {
		return "user"
	}
	return "ai"
}

type wireMessage struct {
	Role      Role   `json:"role,omitempty"`
	Content   string `json:"content"`
	Sender    string `json:"sender,omitempty"`
	UserID    string `json:"userId,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Synthetic bool   `json:"synthetic,omitempty"`
}

func (m Message) MarshalJSON() ([]byte, error) {
	w := wireMessage{
		Role:      m.Role,
		Content:   m.Content,
		Sender:    m.Sender(),
		UserID:    m.UserID,
		Synthetic: m.Synthetic,
	}
	if !m.Timestamp.IsZero() {
		w.Timestamp = m.Timestamp.UTC().Format(time.RFC3339Nano)
	}
	return json.Marshal(w)
}

// UnmarshalJSON accepts records written by older clients: a missing or
// unknown role is derived from sender, and defaults to assistant.
// An unparsable timestamp decodes as the zero time. A null record leaves m
// unchanged.
func (m *Message) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var w wireMessage
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	role := w.Role
	if role != RoleUser && role != RoleAssistant {
		role = RoleAssistant
		if w.Sender == "user" {
			role = RoleUser
		}
	}
	var ts time.Time
	if w.Timestamp != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, w.Timestamp); err == nil {
			ts = parsed
		}
	}
	*m = Message{
		Role:      role,
		Content:   w.Content,
		UserID:    w.UserID,
		Timestamp: ts,
		Synthetic: w.Synthetic,
	}
	return nil
}
