// Package session tracks multi-turn conversations. A session is a plain
// record of messages; the Manager guards concurrent access and persists
// snapshots through a pluggable Store.
package session

import (
	"time"

	"github.com/sweetpotato0/ai-tutor/message"
)

// Session is the serializable state of one conversation.
type Session struct {
	ID        string             `json:"id"`
	Messages  []*message.Message `json:"messages"`
	Metadata  map[string]string  `json:"metadata,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// NewSession creates an empty session with the given id.
func NewSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:        id,
		Metadata:  make(map[string]string),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy, so callers can hand sessions out without
// exposing internal state to mutation.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := &Session{
		ID:        s.ID,
		Messages:  message.CloneMessages(s.Messages),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	if s.Metadata != nil {
		out.Metadata = make(map[string]string, len(s.Metadata))
		for k, v := range s.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// Tail returns up to limit of the most recent messages, cloned. A
// non-positive limit returns the full history.
func (s *Session) Tail(limit int) []*message.Message {
	msgs := s.Messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return message.CloneMessages(msgs)
}
