package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/carpool/internal/models"
	"github.com/example/carpool/internal/storage"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrBadToken           = errors.New("invalid or expired token")
)

// Manager signs and parses access tokens.
type Manager struct {
	signingKey string
	ttl        time.Duration
}

func NewManager(signingKey string, ttl time.Duration) (*Manager, error) {
	if signingKey == "" {
		return nil, errors.New("empty signing key")
	}
	return &Manager{signingKey: signingKey, ttl: ttl}, nil
}

type claims struct {
	jwt.StandardClaims
	Role int `json:"role"`
}

func (m *Manager) NewJWT(userID models.UserID, role models.UserRole) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(m.ttl).Unix(),
			Subject:   userID.String(),
		},
		Role: int(role),
	})
	return token.SignedString([]byte(m.signingKey))
}

// Parse validates the signature and expiry and returns the subject.
func (m *Manager) Parse(accessToken string) (models.UserID, models.UserRole, error) {
	token, err := jwt.ParseWithClaims(accessToken, &claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.signingKey), nil
	})
	if err != nil {
		return "", 0, ErrBadToken
	}
	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid || c.Subject == "" {
		return "", 0, ErrBadToken
	}
	return models.UserID(c.Subject), models.UserRole(c.Role), nil
}

// Service implements account registration and login on top of a UserStore.
type Service struct {
	Users  storage.UserStore
	Tokens *Manager
}

func NewService(users storage.UserStore, tokens *Manager) *Service {
	return &Service{Users: users, Tokens: tokens}
}

func (s *Service) Register(ctx context.Context, in models.RegisterInput) (*models.User, error) {
	name := strings.TrimSpace(in.FullName)
	email := strings.TrimSpace(in.Email)
	if name == "" || email == "" || !strings.Contains(email, "@") {
		return nil, errors.New("name and a valid email are required")
	}
	if len(in.Password) < 8 {
		return nil, errors.New("password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	rec := &storage.UserRecord{
		User: models.User{
			FullName: name,
			Email:    email,
			Role:     models.RoleFromString(in.Role),
		},
		PasswordHash: string(hash),
		ConfirmToken: uuid.NewString(),
	}
	if err := s.Users.CreateUser(ctx, rec); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	u := rec.User
	return &u, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	rec, err := s.Users.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}
	token, err := s.Tokens.NewJWT(rec.ID, rec.Role)
	if err != nil {
		return "", nil, err
	}
	u := rec.User
	return token, &u, nil
}

func (s *Service) ConfirmEmail(ctx context.Context, token string) error {
	if err := s.Users.ConfirmEmail(ctx, token); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrBadToken
		}
		return err
	}
	return nil
}

// UserFromToken resolves the account behind a bearer token.
func (s *Service) UserFromToken(ctx context.Context, accessToken string) (*models.User, error) {
	id, _, err := s.Tokens.Parse(accessToken)
	if err != nil {
		return nil, err
	}
	rec, err := s.Users.UserByID(ctx, id)
	if err != nil {
		return nil, ErrBadToken
	}
	u := rec.User
	return &u, nil
}
