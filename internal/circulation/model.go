package circulation

import (
	"database/sql"
	"time"
)

// borrow_date / return_date の保存形式（SQLite の datetime('now') と同じ、UTC）
const TimeLayout = "2006-01-02 15:04:05"

func formatTime(t time.Time) string { return t.UTC().Format(TimeLayout) }

// Transaction は transactions テーブルの1行。return_date が NULL の間は貸出中
type Transaction struct {
	ID         int64          `db:"id"`
	UserID     sql.NullInt64  `db:"user_id"`
	BookID     sql.NullInt64  `db:"book_id"`
	BorrowDate sql.NullString `db:"borrow_date"`
	ReturnDate sql.NullString `db:"return_date"`

	BookTitle sql.NullString `db:"book_title"`
	UserName  sql.NullString `db:"user_name"`
}

func (t Transaction) Open() bool { return !t.ReturnDate.Valid }

// 貸出履歴の検索条件
type TransactionFilter struct {
	UserID *int64
	BookID *int64
	Open   *bool // true: 未返却のみ / false: 返却済みのみ / nil: 全件
}

type Page struct {
	Limit  int
	Offset int
	Order  string // "asc" | "desc"
}

const (
	defaultLimit = 50
	maxLimit     = 500
)

func (p Page) normalized() Page {
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Order != "asc" {
		p.Order = "desc"
	}
	return p
}
