// Package session holds the authenticated user's token and last-known
// profile across restarts. There is no implicit global: callers are handed
// a Store and must treat ErrNoSession as "logged out", since storage can
// be empty or cleared at any time.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/example/carpool/internal/models"
)

// ErrNoSession is the defined "absent" representation.
var ErrNoSession = errors.New("no session")

type Session struct {
	Token   string      `json:"token"`
	User    models.User `json:"user"`
	SavedAt time.Time   `json:"savedAt"`
}

// LoggedIn reports whether the session carries a usable token.
func (s Session) LoggedIn() bool { return s.Token != "" }

type Store interface {
	Load(ctx context.Context) (Session, error)
	Save(ctx context.Context, s Session) error
	Clear(ctx context.Context) error
}

// MemoryStore keeps the session in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	current *Session
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Load(ctx context.Context) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return Session{}, ErrNoSession
	}
	return *m.current, nil
}

func (m *MemoryStore) Save(ctx context.Context, s Session) error {
	if s.SavedAt.IsZero() {
		s.SavedAt = time.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = &s
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = nil
	return nil
}
