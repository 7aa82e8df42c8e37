package storage

import (
	"context"
	"strconv"
	"strings"

	"github.com/example/carpool/internal/models"
)

// UserRecord is an account row: the public profile plus credentials the
// API never serializes.
type UserRecord struct {
	models.User
	PasswordHash string
	ConfirmToken string
}

// UserStore defines persistence operations for accounts.
type UserStore interface {
	// CreateUser assigns an id; ErrConflict when the email is taken.
	CreateUser(ctx context.Context, u *UserRecord) error
	UserByEmail(ctx context.Context, email string) (*UserRecord, error)
	UserByID(ctx context.Context, id models.UserID) (*UserRecord, error)
	// ConfirmEmail flips the flag for the account holding this token.
	ConfirmEmail(ctx context.Context, token string) error
}

func normEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (m *MemoryStore) CreateUser(ctx context.Context, u *UserRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := normEmail(u.Email)
	if _, ok := m.users[key]; ok {
		return ErrConflict
	}
	m.nextUser++
	u.ID = models.UserID(strconv.FormatInt(m.nextUser, 10))
	cp := *u
	m.users[key] = &cp
	return nil
}

func (m *MemoryStore) UserByEmail(ctx context.Context, email string) (*UserRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[normEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MemoryStore) UserByID(ctx context.Context, id models.UserID) (*UserRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) ConfirmEmail(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if token == "" {
		return ErrNotFound
	}
	for _, u := range m.users {
		if u.ConfirmToken == token {
			u.EmailConfirmed = true
			u.ConfirmToken = ""
			return nil
		}
	}
	return ErrNotFound
}
