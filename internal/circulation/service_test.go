package circulation_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libris-backend/internal/circulation"
	"libris-backend/internal/platform/apierr"
	"libris-backend/internal/platform/db/dbtest"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var borrowTime = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func newService(t *testing.T) (*circulation.Service, *sqlx.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	log, _ := logtest.NewNullLogger()
	svc := circulation.NewService(conn, log).WithClock(fixedClock{t: borrowTime})
	return svc, conn
}

type txRow struct {
	ID         int64   `db:"id"`
	UserID     int64   `db:"user_id"`
	BookID     int64   `db:"book_id"`
	BorrowDate *string `db:"borrow_date"`
	ReturnDate *string `db:"return_date"`
}

func loadTx(t *testing.T, conn *sqlx.DB, id int64) txRow {
	t.Helper()
	var r txRow
	require.NoError(t, conn.Get(&r, `SELECT id, user_id, book_id, borrow_date, return_date FROM transactions WHERE id = ?`, id))
	return r
}

func availability(t *testing.T, conn *sqlx.DB, bookID int64) int {
	t.Helper()
	var v int
	require.NoError(t, conn.Get(&v, `SELECT available FROM books WHERE id = ?`, bookID))
	return v
}

func Test_BorrowAndReturn_RoundTrip(t *testing.T) {
	svc, conn := newService(t)
	ctx := context.Background()
	bookID := dbtest.SeedBook(t, conn, "Dune", "Herbert", true)

	borrowed, err := svc.Borrow(ctx, circulation.BorrowRequest{UserID: "5", BookID: "1"})
	require.NoError(t, err)
	assert.Equal(t, circulation.StatusBorrowed, borrowed.Status)
	assert.Equal(t, "2025-03-14 09:26:53", borrowed.BorrowDate)
	assert.Equal(t, 0, availability(t, conn, bookID))
	assert.Equal(t, 1, dbtest.Count(t, conn, "transactions"))

	row := loadTx(t, conn, borrowed.TransactionID)
	assert.Equal(t, int64(5), row.UserID)
	assert.Equal(t, bookID, row.BookID)
	require.NotNil(t, row.BorrowDate)
	assert.Equal(t, "2025-03-14 09:26:53", *row.BorrowDate)
	assert.Nil(t, row.ReturnDate)

	returned, err := svc.Return(ctx, circulation.ReturnRequest{TransactionID: circulation.IDText("1")})
	require.NoError(t, err)
	assert.Equal(t, circulation.StatusReturned, returned.Status)
	assert.Equal(t, bookID, returned.BookID)
	assert.Equal(t, 1, availability(t, conn, bookID))

	row = loadTx(t, conn, borrowed.TransactionID)
	require.NotNil(t, row.ReturnDate)
	assert.Equal(t, "2025-03-14 09:26:53", *row.ReturnDate)
}

func Test_Borrow_Refused(t *testing.T) {
	tests := []struct {
		name      string
		available bool
		bookID    circulation.IDText
		code      apierr.Code
	}{
		{name: "book_lent_out", available: false, bookID: "1", code: apierr.CodeConflict},
		{name: "no_such_book", available: true, bookID: "99", code: apierr.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, conn := newService(t)
			dbtest.SeedBook(t, conn, "Dune", "Herbert", tt.available)

			_, err := svc.Borrow(context.Background(), circulation.BorrowRequest{UserID: "5", BookID: tt.bookID})

			require.Error(t, err)
			assert.True(t, apierr.Is(err, tt.code))
			assert.Contains(t, err.Error(), circulation.StatusNotAvailable)
			assert.Equal(t, 0, dbtest.Count(t, conn, "transactions"))
			assert.Equal(t, 1, dbtest.Count(t, conn, "books"))
		})
	}
}

func Test_Borrow_Twice(t *testing.T) {
	svc, conn := newService(t)
	ctx := context.Background()
	dbtest.SeedBook(t, conn, "Dune", "Herbert", true)

	_, err := svc.Borrow(ctx, circulation.BorrowRequest{UserID: "5", BookID: "1"})
	require.NoError(t, err)

	_, err = svc.Borrow(ctx, circulation.BorrowRequest{UserID: "6", BookID: "1"})
	assert.True(t, apierr.Is(err, apierr.CodeConflict))
	assert.Equal(t, 1, dbtest.Count(t, conn, "transactions"))
}

func Test_Borrow_ConcurrentSameBook(t *testing.T) {
	svc, conn := newService(t)
	dbtest.SeedBook(t, conn, "Dune", "Herbert", true)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Borrow(context.Background(), circulation.BorrowRequest{UserID: "5", BookID: "1"})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, dbtest.Count(t, conn, "transactions"))
	assert.Equal(t, 0, availability(t, conn, 1))
}

func Test_Borrow_InvalidInput(t *testing.T) {
	svc, conn := newService(t)
	dbtest.SeedBook(t, conn, "Dune", "Herbert", true)

	tests := []struct {
		name string
		req  circulation.BorrowRequest
	}{
		{"non_numeric_user", circulation.BorrowRequest{UserID: "abc", BookID: "1"}},
		{"non_numeric_book", circulation.BorrowRequest{UserID: "5", BookID: "one"}},
		{"empty_user", circulation.BorrowRequest{UserID: "", BookID: "1"}},
		{"decimal_book", circulation.BorrowRequest{UserID: "5", BookID: "1.5"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Borrow(context.Background(), tt.req)
			assert.True(t, apierr.Is(err, apierr.CodeInvalidArgument))
			assert.Equal(t, 0, dbtest.Count(t, conn, "transactions"))
			assert.Equal(t, 1, availability(t, conn, 1))
		})
	}
}

func Test_Borrow_TrimsWhitespace(t *testing.T) {
	svc, conn := newService(t)
	dbtest.SeedBook(t, conn, "Dune", "Herbert", true)

	res, err := svc.Borrow(context.Background(), circulation.BorrowRequest{UserID: " 5 ", BookID: "1\n"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), res.UserID)
}

func Test_Return_Refused(t *testing.T) {
	svc, conn := newService(t)
	ctx := context.Background()
	dbtest.SeedBook(t, conn, "Dune", "Herbert", true)

	borrowed, err := svc.Borrow(ctx, circulation.BorrowRequest{UserID: "5", BookID: "1"})
	require.NoError(t, err)
	_, err = svc.Return(ctx, circulation.ReturnRequest{TransactionID: "1"})
	require.NoError(t, err)
	before := loadTx(t, conn, borrowed.TransactionID)

	tests := []struct {
		name string
		id   circulation.IDText
	}{
		{"already_returned", "1"},
		{"never_existed", "42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Return(ctx, circulation.ReturnRequest{TransactionID: tt.id})
			require.Error(t, err)
			assert.True(t, apierr.Is(err, apierr.CodeNotFound))
			assert.Contains(t, err.Error(), circulation.StatusNotFound)
		})
	}

	assert.Equal(t, before, loadTx(t, conn, borrowed.TransactionID))
	assert.Equal(t, 1, dbtest.Count(t, conn, "transactions"))
	assert.Equal(t, 1, availability(t, conn, 1))

	_, err = svc.Return(ctx, circulation.ReturnRequest{TransactionID: "x"})
	assert.True(t, apierr.Is(err, apierr.CodeInvalidArgument))
}

func Test_Return_LeavesOtherBooksAlone(t *testing.T) {
	svc, conn := newService(t)
	ctx := context.Background()
	dbtest.SeedBook(t, conn, "Dune", "Herbert", true)
	dbtest.SeedBook(t, conn, "Emma", "Austen", true)

	_, err := svc.Borrow(ctx, circulation.BorrowRequest{UserID: "1", BookID: "1"})
	require.NoError(t, err)
	_, err = svc.Borrow(ctx, circulation.BorrowRequest{UserID: "1", BookID: "2"})
	require.NoError(t, err)

	_, err = svc.Return(ctx, circulation.ReturnRequest{TransactionID: "2"})
	require.NoError(t, err)

	assert.Equal(t, 0, availability(t, conn, 1))
	assert.Equal(t, 1, availability(t, conn, 2))
}

func Test_GetTransaction(t *testing.T) {
	svc, conn := newService(t)
	ctx := context.Background()
	dbtest.SeedBook(t, conn, "Dune", "Herbert", true)

	_, err := svc.Borrow(ctx, circulation.BorrowRequest{UserID: "5", BookID: "1"})
	require.NoError(t, err)

	got, err := svc.GetTransaction(ctx, 1)
	require.NoError(t, err)
	assert.True(t, got.Open)
	require.NotNil(t, got.UserID)
	assert.Equal(t, int64(5), *got.UserID)
	assert.Nil(t, got.ReturnDate)

	_, err = svc.GetTransaction(ctx, 2)
	assert.True(t, apierr.Is(err, apierr.CodeNotFound))
}

func Test_ListTransactions(t *testing.T) {
	svc, conn := newService(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		dbtest.SeedBook(t, conn, "Book", "Author", true)
	}
	for _, req := range []circulation.BorrowRequest{
		{UserID: "1", BookID: "1"},
		{UserID: "2", BookID: "2"},
		{UserID: "1", BookID: "3"},
	} {
		_, err := svc.Borrow(ctx, req)
		require.NoError(t, err)
	}
	_, err := svc.Return(ctx, circulation.ReturnRequest{TransactionID: "1"})
	require.NoError(t, err)

	open, closed := true, false
	user1 := int64(1)
	book2 := int64(2)

	tests := []struct {
		name     string
		filter   circulation.TransactionFilter
		page     circulation.Page
		wantIDs  []int64
		total    int64
		nextOffs int
	}{
		{name: "all_desc_default", wantIDs: []int64{3, 2, 1}, total: 3},
		{name: "all_asc", page: circulation.Page{Order: "asc"}, wantIDs: []int64{1, 2, 3}, total: 3},
		{name: "open_only", filter: circulation.TransactionFilter{Open: &open}, wantIDs: []int64{3, 2}, total: 2},
		{name: "closed_only", filter: circulation.TransactionFilter{Open: &closed}, wantIDs: []int64{1}, total: 1},
		{name: "by_user", filter: circulation.TransactionFilter{UserID: &user1}, wantIDs: []int64{3, 1}, total: 2},
		{name: "by_book", filter: circulation.TransactionFilter{BookID: &book2}, wantIDs: []int64{2}, total: 1},
		{name: "by_user_open", filter: circulation.TransactionFilter{UserID: &user1, Open: &open}, wantIDs: []int64{3}, total: 1},
		{name: "first_page", page: circulation.Page{Limit: 2}, wantIDs: []int64{3, 2}, total: 3, nextOffs: 2},
		{name: "last_page", page: circulation.Page{Limit: 2, Offset: 2}, wantIDs: []int64{1}, total: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.ListTransactions(ctx, tt.filter, tt.page)
			require.NoError(t, err)

			ids := make([]int64, 0, len(res.Items))
			for _, it := range res.Items {
				ids = append(ids, it.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, tt.total, res.Total)
			assert.Equal(t, tt.nextOffs, res.NextOffset)
		})
	}
}

func Test_StoreFailure_IsInternal(t *testing.T) {
	tests := []struct {
		name    string
		call    func(ctx context.Context, svc *circulation.Service) error
		wantLog string
	}{
		{
			name: "borrow",
			call: func(ctx context.Context, svc *circulation.Service) error {
				_, err := svc.Borrow(ctx, circulation.BorrowRequest{UserID: "5", BookID: "2"})
				return err
			},
			wantLog: "borrow failed",
		},
		{
			name: "return",
			call: func(ctx context.Context, svc *circulation.Service) error {
				_, err := svc.Return(ctx, circulation.ReturnRequest{TransactionID: "1"})
				return err
			},
			wantLog: "return failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := dbtest.Open(t)
			log, hook := logtest.NewNullLogger()
			svc := circulation.NewService(conn, log).WithClock(fixedClock{t: borrowTime})
			ctx := context.Background()

			dbtest.SeedBook(t, conn, "Dune", "Herbert", true)
			dbtest.SeedBook(t, conn, "Emma", "Austen", true)
			_, err := svc.Borrow(ctx, circulation.BorrowRequest{UserID: "5", BookID: "1"})
			require.NoError(t, err)
			require.NoError(t, conn.Close())

			err = tt.call(ctx, svc)

			assert.True(t, apierr.Is(err, apierr.CodeInternal))
			assert.EqualError(t, err, "INTERNAL: "+apierr.MsgInternal)
			last := hook.LastEntry()
			require.NotNil(t, last)
			assert.Equal(t, logrus.ErrorLevel, last.Level)
			assert.Equal(t, tt.wantLog, last.Message)
			assert.NotNil(t, last.Data[logrus.ErrorKey])
		})
	}
}

func Test_Transactions_CarryNames(t *testing.T) {
	svc, conn := newService(t)
	ctx := context.Background()
	dbtest.SeedBook(t, conn, "砂の女", "安部公房", true)
	dbtest.SeedBook(t, conn, "Emma", "Austen", true)
	dbtest.SeedUser(t, conn, "山田太郎")

	_, err := svc.Borrow(ctx, circulation.BorrowRequest{UserID: "1", BookID: "1"})
	require.NoError(t, err)
	_, err = svc.Borrow(ctx, circulation.BorrowRequest{UserID: "9", BookID: "2"})
	require.NoError(t, err)

	got, err := svc.GetTransaction(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got.BookTitle)
	require.NotNil(t, got.UserName)
	assert.Equal(t, "砂の女", *got.BookTitle)
	assert.Equal(t, "山田太郎", *got.UserName)

	// 利用者 9 は存在しない
	user9 := int64(9)
	res, err := svc.ListTransactions(ctx, circulation.TransactionFilter{UserID: &user9}, circulation.Page{})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, int64(1), res.Total)
	require.NotNil(t, res.Items[0].BookTitle)
	assert.Equal(t, "Emma", *res.Items[0].BookTitle)
	assert.Nil(t, res.Items[0].UserName)
}
