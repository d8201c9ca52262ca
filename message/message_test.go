package message

import (
	"testing"
)

func TestNewMessage(t *testing.T) {
	msg := NewMessage(RoleUser, "Hello, world!")

	if msg.Role != RoleUser {
		t.Errorf("Expected role %s, got %s", RoleUser, msg.Role)
	}

	if msg.Content != "Hello, world!" {
		t.Errorf("Expected content 'Hello, world!', got '%s'", msg.Content)
	}

	if msg.ID == "" {
		t.Error("Expected non-empty ID")
	}

	if msg.CreatedAt.IsZero() {
		t.Error("Expected non-zero created time")
	}
}

func TestClone(t *testing.T) {
	msg := NewMessage(RoleAssistant, "answer")
	msg.Metadata["route"] = "pdf"

	cloned := Clone(msg)
	cloned.Metadata["route"] = "web"

	if msg.Metadata["route"] != "pdf" {
		t.Errorf("Clone should not share metadata with the original, got %v", msg.Metadata["route"])
	}
	if cloned.Content != msg.Content {
		t.Errorf("Expected cloned content %q, got %q", msg.Content, cloned.Content)
	}
}

func TestCloneMessages(t *testing.T) {
	msgs := []*Message{
		NewMessage(RoleUser, "question"),
		NewMessage(RoleAssistant, "answer"),
	}

	clones := CloneMessages(msgs)
	if len(clones) != 2 {
		t.Fatalf("Expected 2 clones, got %d", len(clones))
	}
	if clones[0] == msgs[0] {
		t.Error("Expected distinct message pointers after clone")
	}

	if CloneMessages(nil) != nil {
		t.Error("Expected nil for empty input")
	}
}
