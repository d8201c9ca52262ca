package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	apperrors "github.com/sweetpotato0/ai-tutor/errors"
	"github.com/sweetpotato0/ai-tutor/message"
	"github.com/sweetpotato0/ai-tutor/pkg/logging"
)

// DefaultMaxHistory bounds how many messages a session retains. The
// oldest user/assistant pair is evicted first.
const DefaultMaxHistory = 10

// Store persists session snapshots. Load returns
// errors.ErrSessionNotFound (possibly wrapped) for unknown ids.
type Store interface {
	Save(ctx context.Context, sess *Session) error
	Load(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int, error)
}

// handle pairs a live session with its own locks. mu guards snapshot
// reads and writes; turn is a one-slot semaphore that serializes whole
// turns on one session while distinct sessions proceed concurrently.
type handle struct {
	mu   sync.Mutex
	turn chan struct{}
	sess *Session
}

func newHandle(sess *Session) *handle {
	return &handle{turn: make(chan struct{}, 1), sess: sess}
}

// Manager coordinates access to sessions. All mutation goes through the
// manager so a turn is appended atomically: a completed turn adds exactly
// the user message and the assistant message, nothing else.
type Manager struct {
	mu         sync.RWMutex
	store      Store
	sessions   map[string]*handle
	maxHistory int
	logger     *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithStore sets the persistence backend.
func WithStore(s Store) Option {
	return func(m *Manager) {
		m.store = s
	}
}

// WithMaxHistory overrides the retained-message bound.
func WithMaxHistory(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxHistory = n
		}
	}
}

// WithLogger overrides the manager's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a session manager.
//
// Example:
//
//	mgr := session.NewManager(session.WithStore(store.NewMemoryStore()))
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		sessions:   make(map[string]*handle),
		maxHistory: DefaultMaxHistory,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = logging.WithComponent("session_manager")
	}
	return m
}

// Create creates a new session. An empty id is replaced with a fresh
// UUID. Creating an id that already exists is an error.
func (m *Manager) Create(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		id = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; ok {
		return nil, fmt.Errorf("session %s already exists", id)
	}
	if m.store != nil {
		if _, err := m.store.Load(ctx, id); err == nil {
			return nil, fmt.Errorf("session %s already exists", id)
		}
	}

	sess := NewSession(id)
	if err := m.persist(ctx, sess); err != nil {
		m.logger.Error("create session persist failed", "id", id, "error", err)
		return nil, err
	}
	m.sessions[id] = newHandle(sess)
	m.logger.Info("session created", "id", id)
	return sess.Clone(), nil
}

// Get retrieves a session snapshot by id.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	h, err := m.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sess.Clone(), nil
}

// GetOrCreate retrieves a session or creates it when absent. An empty id
// always creates a fresh session.
func (m *Manager) GetOrCreate(ctx context.Context, id string) (*Session, error) {
	if id != "" {
		if sess, err := m.Get(ctx, id); err == nil {
			return sess, nil
		}
	}
	return m.Create(ctx, id)
}

// AcquireTurn claims the session's turn slot so that at most one turn
// at a time runs against a session id. The returned release func must
// be called when the turn finishes. Waiting respects ctx cancellation.
func (m *Manager) AcquireTurn(ctx context.Context, id string) (func(), error) {
	h, err := m.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	select {
	case h.turn <- struct{}{}:
		return func() { <-h.turn }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// AppendTurn records one completed turn: the user message and the
// assistant message, in that order. Nothing is written for failed turns,
// so history never carries a dangling user message. When the history
// exceeds the retained bound, the oldest pair is evicted.
func (m *Manager) AppendTurn(ctx context.Context, id string, user, assistant *message.Message) error {
	if user == nil || assistant == nil {
		return fmt.Errorf("turn requires both user and assistant messages")
	}
	h, err := m.lookup(ctx, id)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	msgs := append(h.sess.Messages, message.Clone(user), message.Clone(assistant))
	for len(msgs) > m.maxHistory {
		evict := 2
		if evict > len(msgs) {
			evict = len(msgs)
		}
		msgs = msgs[evict:]
	}
	h.sess.Messages = msgs
	h.sess.UpdatedAt = assistant.CreatedAt
	if err := m.persist(ctx, h.sess); err != nil {
		m.logger.Error("append turn persist failed", "id", id, "error", err)
		return err
	}
	m.logger.Debug("turn appended", "id", id, "messages", len(h.sess.Messages))
	return nil
}

// History returns up to limit of the session's most recent messages. A
// non-positive limit returns everything retained.
func (m *Manager) History(ctx context.Context, id string, limit int) ([]*message.Message, error) {
	h, err := m.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sess.Tail(limit), nil
}

// Clear drops a session's messages but keeps the session itself.
func (m *Manager) Clear(ctx context.Context, id string) error {
	h, err := m.lookup(ctx, id)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sess.Messages = nil
	if err := m.persist(ctx, h.sess); err != nil {
		m.logger.Error("clear session persist failed", "id", id, "error", err)
		return err
	}
	m.logger.Info("session cleared", "id", id)
	return nil
}

// Delete removes a session from memory and the store.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, inMemory := m.sessions[id]
	delete(m.sessions, id)

	if m.store != nil {
		if err := m.store.Delete(ctx, id); err != nil {
			m.logger.Error("delete session failed", "id", id, "error", err)
			return err
		}
	} else if !inMemory {
		return apperrors.ErrSessionNotFound
	}
	m.logger.Info("session deleted", "id", id)
	return nil
}

// List returns the ids of all known sessions.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	if m.store != nil {
		return m.store.List(ctx)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids, nil
}

// Count returns the number of known sessions.
func (m *Manager) Count(ctx context.Context) (int, error) {
	if m.store != nil {
		return m.store.Count(ctx)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions), nil
}

// lookup returns the live handle, rehydrating from the store on a
// memory miss.
func (m *Manager) lookup(ctx context.Context, id string) (*handle, error) {
	m.mu.RLock()
	h, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		return h, nil
	}

	if m.store == nil {
		return nil, apperrors.ErrSessionNotFound
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.sessions[id]; ok {
		return h, nil
	}
	sess, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	h = newHandle(sess)
	m.sessions[id] = h
	m.logger.Debug("session rehydrated", "id", id)
	return h, nil
}

func (m *Manager) persist(ctx context.Context, sess *Session) error {
	if m.store == nil {
		return nil
	}
	return m.store.Save(ctx, sess.Clone())
}
