package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/example/carpool/internal/models"
	"github.com/example/carpool/internal/session"
)

// Login authenticates and persists the session. Any previous session is
// overwritten.
func (c *Client) Login(ctx context.Context, email, password string) (models.User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return models.User{}, validationMsg("Email and password are required.")
	}
	in := models.LoginInput{Email: email, Password: password}
	reply, err := do[models.AuthReply](ctx, c, http.MethodPost, "/Auth/login", nil, in, "")
	if err != nil {
		return models.User{}, err
	}
	if err := c.sessions.Save(ctx, session.Session{Token: reply.Token, User: reply.User}); err != nil {
		return models.User{}, transportErr(err)
	}
	return reply.User, nil
}

func (c *Client) Register(ctx context.Context, in models.RegisterInput) (models.User, error) {
	if strings.TrimSpace(in.Email) == "" || in.Password == "" || strings.TrimSpace(in.FullName) == "" {
		return models.User{}, validationMsg("Name, email and password are required.")
	}
	return do[models.User](ctx, c, http.MethodPost, "/Auth/register", nil, in, "")
}

// ConfirmEmail redeems the token from the confirmation mail.
func (c *Client) ConfirmEmail(ctx context.Context, email, token string) (bool, error) {
	if token == "" {
		return false, validationMsg("Confirmation token is missing.")
	}
	q := url.Values{}
	q.Set("email", email)
	q.Set("token", token)
	return get[bool](ctx, c, "/Auth/confirm-email", q, "")
}

// Logout clears the stored session. It never fails loudly: a cleared or
// missing session already means logged out.
func (c *Client) Logout(ctx context.Context) {
	_ = c.sessions.Clear(ctx)
}
