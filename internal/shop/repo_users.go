package shop

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func (r *Repo) CreateUser(ctx context.Context, email, name, passwordHash string) (User, error) {
	u := User{ID: uuid.NewString(), Email: email, Name: name}
	err := r.DB.QueryRow(ctx, `
		INSERT INTO users(id, email, name, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`, u.ID, u.Email, u.Name, passwordHash).Scan(&u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return User{}, E(KindConflict, "user with this email already exists")
		}
		return User{}, err
	}
	return u, nil
}

func (r *Repo) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := r.DB.QueryRow(ctx, `
		SELECT id, email, name, password_hash, created_at
		FROM users WHERE email=$1`, email).
		Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, E(KindNotFound, "user not found")
	}
	return u, err
}

func (r *Repo) GetUserByID(ctx context.Context, id string) (User, error) {
	var u User
	err := r.DB.QueryRow(ctx, `
		SELECT id, email, name, password_hash, created_at
		FROM users WHERE id=$1`, id).
		Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, E(KindNotFound, "user not found")
	}
	return u, err
}
