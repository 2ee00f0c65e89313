package members

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"libris-backend/internal/platform/db"
)

var ErrUserNotFound = errors.New("user not found")

type Store struct{ db db.DBTX }

func NewStore(conn db.DBTX) *Store { return &Store{db: conn} }

func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	const q = `SELECT id, name FROM users ORDER BY id`
	out := []User{}
	if err := sqlx.SelectContext(ctx, s.db, &out, q); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return out, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (*User, error) {
	const q = `SELECT id, name FROM users WHERE id = ?`
	var u User
	if err := sqlx.GetContext(ctx, s.db, &u, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return &u, nil
}

func (s *Store) InsertUser(ctx context.Context, name string) (*User, error) {
	const q = `INSERT INTO users (name) VALUES (?)`
	r, err := s.db.ExecContext(ctx, q, name)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	lastID, err := r.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return &User{ID: lastID, Name: sql.NullString{String: name, Valid: true}}, nil
}
