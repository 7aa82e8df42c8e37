package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/carpool/internal/models"
	"github.com/example/carpool/internal/storage"
)

func newService(t *testing.T) *Service {
	t.Helper()
	tokens, err := NewManager("test-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return NewService(storage.NewMemoryStore(), tokens)
}

func TestRegisterLoginRoundTrip(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	u, err := s.Register(ctx, models.RegisterInput{FullName: "Ana", Email: "ana@example.com", Password: "hunter2hunter2", Role: "driver"})
	if err != nil {
		t.Fatal(err)
	}
	if u.ID == "" || u.Role != models.RoleDriver {
		t.Fatalf("unexpected user: %+v", u)
	}

	token, logged, err := s.Login(ctx, "ana@example.com", "hunter2hunter2")
	if err != nil {
		t.Fatal(err)
	}
	if logged.ID != u.ID {
		t.Fatalf("expected same user, got %+v", logged)
	}

	got, err := s.UserFromToken(ctx, token)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != u.ID || got.FullName != "Ana" {
		t.Fatalf("unexpected token user: %+v", got)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	if _, err := s.Register(ctx, models.RegisterInput{FullName: "Bo", Email: "bo@example.com", Password: "secret-pass"}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Login(ctx, "bo@example.com", "wrong-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := s.Login(ctx, "nobody@example.com", "whatever1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestDuplicateEmailRejected(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	in := models.RegisterInput{FullName: "Cy", Email: "cy@example.com", Password: "secret-pass"}
	if _, err := s.Register(ctx, in); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Register(ctx, in); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	tokens, err := NewManager("test-secret", -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	s := NewService(storage.NewMemoryStore(), tokens)
	ctx := context.Background()
	if _, err := s.Register(ctx, models.RegisterInput{FullName: "Di", Email: "di@example.com", Password: "secret-pass"}); err != nil {
		t.Fatal(err)
	}
	token, _, err := s.Login(ctx, "di@example.com", "secret-pass")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.UserFromToken(ctx, token); !errors.Is(err, ErrBadToken) {
		t.Fatalf("expected ErrBadToken, got %v", err)
	}
}

func TestConfirmEmailToken(t *testing.T) {
	store := storage.NewMemoryStore()
	tokens, _ := NewManager("k", time.Hour)
	s := NewService(store, tokens)
	ctx := context.Background()
	if _, err := s.Register(ctx, models.RegisterInput{FullName: "El", Email: "el@example.com", Password: "secret-pass"}); err != nil {
		t.Fatal(err)
	}
	rec, err := store.UserByEmail(ctx, "el@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if rec.EmailConfirmed {
		t.Fatal("fresh account should be unconfirmed")
	}
	if err := s.ConfirmEmail(ctx, rec.ConfirmToken); err != nil {
		t.Fatal(err)
	}
	rec, _ = store.UserByEmail(ctx, "el@example.com")
	if !rec.EmailConfirmed {
		t.Fatal("expected confirmed account")
	}
	if err := s.ConfirmEmail(ctx, "bogus"); !errors.Is(err, ErrBadToken) {
		t.Fatalf("expected ErrBadToken, got %v", err)
	}
}
