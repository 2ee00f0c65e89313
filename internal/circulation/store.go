package circulation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/jmoiron/sqlx"

	"libris-backend/internal/platform/db"
)

var (
	ErrBookNotFound       = errors.New("book not found")
	ErrBookUnavailable    = errors.New("book is not available")
	ErrTransactionNotOpen = errors.New("transaction not found or already returned")
	ErrTransactionMissing = errors.New("transaction not found")
)

const (
	tableTransactions = "transactions"
	tableBooks        = "books"
	tableUsers        = "users"
	dialectSQLite     = "sqlite3"
)

var (
	tTransactions = goqu.T(tableTransactions)
	tBooks        = goqu.T(tableBooks)
	tUsers        = goqu.T(tableUsers)
)

// 書名・利用者名は LEFT JOIN で補う（該当行が無ければ NULL）
var transactionColumns = []any{
	tTransactions.Col("id"),
	tTransactions.Col("user_id"),
	tTransactions.Col("book_id"),
	tTransactions.Col("borrow_date"),
	tTransactions.Col("return_date"),
	tBooks.Col("title").As("book_title"),
	tUsers.Col("name").As("user_name"),
}

type Store struct {
	db *sqlx.DB
}

func NewStore(conn *sqlx.DB) *Store { return &Store{db: conn} }

// ---- Transactional Methods ----

// ExecBorrow: 在庫確認 → 貸出中に変更 → 貸出記録の追加 を1トランザクションで行う
func (s *Store) ExecBorrow(ctx context.Context, userID, bookID int64, borrowDate string) (int64, error) {
	var txID int64
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		// 1. 現在の状態
		var available int
		err := tx.QueryRowxContext(ctx, `SELECT COALESCE(available, 0) FROM books WHERE id = ?`, bookID).Scan(&available)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrBookNotFound
			}
			return fmt.Errorf("read availability of book %d: %w", bookID, err)
		}
		if available != 1 {
			return ErrBookUnavailable
		}

		// 2. 貸出中へ（条件付き更新なので二重貸出にならない）
		res, err := tx.ExecContext(ctx, `UPDATE books SET available = 0 WHERE id = ? AND available = 1`, bookID)
		if err != nil {
			return fmt.Errorf("mark book %d unavailable: %w", bookID, err)
		}
		if aff, _ := res.RowsAffected(); aff != 1 {
			return ErrBookUnavailable
		}

		// 3. 貸出記録
		const q = `
		INSERT INTO transactions (user_id, book_id, borrow_date, return_date)
		VALUES (?, ?, ?, NULL)`
		res, err = tx.ExecContext(ctx, q, userID, bookID, borrowDate)
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		txID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return txID, nil
}

// ExecReturn: 未返却の貸出を閉じ、書籍を貸出可能に戻す。返り値は書籍ID
func (s *Store) ExecReturn(ctx context.Context, transactionID int64, returnDate string) (int64, error) {
	var bookID int64
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		// 1. 未返却の貸出を取得
		var ref sql.NullInt64
		err := tx.QueryRowxContext(ctx,
			`SELECT book_id FROM transactions WHERE id = ? AND return_date IS NULL`, transactionID).Scan(&ref)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrTransactionNotOpen
			}
			return fmt.Errorf("read transaction %d: %w", transactionID, err)
		}

		// 2. 返却日時を記録
		res, err := tx.ExecContext(ctx,
			`UPDATE transactions SET return_date = ? WHERE id = ? AND return_date IS NULL`, returnDate, transactionID)
		if err != nil {
			return fmt.Errorf("close transaction %d: %w", transactionID, err)
		}
		if aff, _ := res.RowsAffected(); aff != 1 {
			return ErrTransactionNotOpen
		}

		// 3. 書籍を貸出可能に戻す（book_id が NULL の古い行はスキップ）
		if !ref.Valid {
			return nil
		}
		bookID = ref.Int64
		if _, err := tx.ExecContext(ctx, `UPDATE books SET available = 1 WHERE id = ?`, bookID); err != nil {
			return fmt.Errorf("mark book %d available: %w", bookID, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return bookID, nil
}

// ---- Queries ----

func (s *Store) GetTransaction(ctx context.Context, id int64) (*Transaction, error) {
	q, args, err := withNames(goqu.Dialect(dialectSQLite).From(tableTransactions).Prepared(true)).
		Select(transactionColumns...).
		Where(tTransactions.Col("id").Eq(id)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build get query: %w", err)
	}
	var t Transaction
	if err := sqlx.GetContext(ctx, s.db, &t, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionMissing
		}
		return nil, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return &t, nil
}

func filtered(f TransactionFilter) *goqu.SelectDataset {
	ds := goqu.Dialect(dialectSQLite).From(tableTransactions).Prepared(true)
	if f.UserID != nil {
		ds = ds.Where(tTransactions.Col("user_id").Eq(*f.UserID))
	}
	if f.BookID != nil {
		ds = ds.Where(tTransactions.Col("book_id").Eq(*f.BookID))
	}
	if f.Open != nil {
		if *f.Open {
			ds = ds.Where(tTransactions.Col("return_date").IsNull())
		} else {
			ds = ds.Where(tTransactions.Col("return_date").IsNotNull())
		}
	}
	return ds
}

func withNames(ds *goqu.SelectDataset) *goqu.SelectDataset {
	return ds.
		LeftJoin(tBooks, goqu.On(tBooks.Col("id").Eq(tTransactions.Col("book_id")))).
		LeftJoin(tUsers, goqu.On(tUsers.Col("id").Eq(tTransactions.Col("user_id"))))
}

// ListTransactions は1ページ分の行と、条件に一致する総件数を返す
func (s *Store) ListTransactions(ctx context.Context, f TransactionFilter, p Page) ([]Transaction, int64, error) {
	p = p.normalized()
	base := filtered(f)

	order := tTransactions.Col("id").Desc()
	if p.Order == "asc" {
		order = tTransactions.Col("id").Asc()
	}
	listSQL, listArgs, err := withNames(base).
		Select(transactionColumns...).
		Order(order).
		Limit(uint(p.Limit)).
		Offset(uint(p.Offset)).
		ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build list query: %w", err)
	}

	out := []Transaction{}
	if err := sqlx.SelectContext(ctx, s.db, &out, listSQL, listArgs...); err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}

	countSQL, countArgs, err := base.Select(goqu.COUNT(goqu.Star())).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}
	var total int64
	if err := sqlx.GetContext(ctx, s.db, &total, countSQL, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	return out, total, nil
}
