package storage

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/example/carpool/internal/models"
)

func (p *PostgresStore) CreateUser(ctx context.Context, u *UserRecord) error {
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO users(full_name, email, password_hash, role, rating, email_confirmed, confirm_token)
		VALUES($1,$2,$3,$4,$5,$6,$7)
		RETURNING id`,
		u.FullName, normEmail(u.Email), u.PasswordHash, int(u.Role), u.Rating,
		u.EmailConfirmed, u.ConfirmToken).Scan(&u.ID)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return ErrConflict
	}
	return err
}

func (p *PostgresStore) scanUser(ctx context.Context, where string, arg any) (*UserRecord, error) {
	var u UserRecord
	var role int
	err := p.db.QueryRowContext(ctx, `
		SELECT id, full_name, email, password_hash, role, rating, email_confirmed, coalesce(confirm_token, '')
		FROM users WHERE `+where, arg).
		Scan(&u.ID, &u.FullName, &u.Email, &u.PasswordHash, &role, &u.Rating, &u.EmailConfirmed, &u.ConfirmToken)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Role = models.UserRole(role)
	return &u, nil
}

func (p *PostgresStore) UserByEmail(ctx context.Context, email string) (*UserRecord, error) {
	return p.scanUser(ctx, `email = $1`, normEmail(email))
}

func (p *PostgresStore) UserByID(ctx context.Context, id models.UserID) (*UserRecord, error) {
	return p.scanUser(ctx, `id::text = $1`, id)
}

func (p *PostgresStore) ConfirmEmail(ctx context.Context, token string) error {
	if token == "" {
		return ErrNotFound
	}
	res, err := p.db.ExecContext(ctx, `
		UPDATE users SET email_confirmed = TRUE, confirm_token = NULL
		WHERE confirm_token = $1`, token)
	if err != nil {
		return err
	}
	return oneRowOr(res, ErrNotFound)
}
