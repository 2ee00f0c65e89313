package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"libris-backend/internal/platform/db"
)

// available は 1 のときだけ貸出可能（既存データの 2 や NULL も貸出中として読む）
const bookColumns = `id, title, author, CASE WHEN available = 1 THEN 1 ELSE 0 END AS available`

var ErrBookNotFound = errors.New("book not found")

type Store struct {
	db db.DBTX
}

func NewStore(conn db.DBTX) *Store { return &Store{db: conn} }

// likePattern は keyword を部分一致パターンに変換する（% _ \ はそのまま文字として扱う）
func likePattern(keyword string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(keyword) + "%"
}

// Search: タイトルまたは著者に keyword を含む書籍。大文字小文字は SQLite の LIKE に従う
func (s *Store) Search(ctx context.Context, keyword string) ([]Book, error) {
	const q = `
		SELECT ` + bookColumns + `
		FROM books
		WHERE COALESCE(title, '') LIKE ? ESCAPE '\'
		   OR COALESCE(author, '') LIKE ? ESCAPE '\'
		ORDER BY id`

	p := likePattern(keyword)
	out := []Book{}
	if err := sqlx.SelectContext(ctx, s.db, &out, q, p, p); err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}
	return out, nil
}

func (s *Store) GetBook(ctx context.Context, id int64) (*Book, error) {
	const q = `SELECT ` + bookColumns + ` FROM books WHERE id = ?`
	var b Book
	if err := sqlx.GetContext(ctx, s.db, &b, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("get book %d: %w", id, err)
	}
	return &b, nil
}

func (s *Store) ListBooks(ctx context.Context, availableOnly bool) ([]Book, error) {
	q := `SELECT ` + bookColumns + ` FROM books`
	if availableOnly {
		q += ` WHERE available = 1`
	}
	q += ` ORDER BY id`

	out := []Book{}
	if err := sqlx.SelectContext(ctx, s.db, &out, q); err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return out, nil
}

func (s *Store) InsertBook(ctx context.Context, title, author string) (*Book, error) {
	const q = `INSERT INTO books (title, author, available) VALUES (?, ?, 1)`
	res, err := s.db.ExecContext(ctx, q, title, author)
	if err != nil {
		return nil, fmt.Errorf("insert book: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert book: %w", err)
	}
	return &Book{
		ID:        id,
		Title:     sql.NullString{String: title, Valid: true},
		Author:    sql.NullString{String: author, Valid: true},
		Available: true,
	}, nil
}
