package circulation

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"libris-backend/internal/platform/apierr"
	"libris-backend/internal/platform/logging"
)

// 利用者に返す状態メッセージ
const (
	StatusBorrowed     = "Book borrowed successfully!"
	StatusNotAvailable = "Book is not available."
	StatusReturned     = "Book returned successfully!"
	StatusNotFound     = "Transaction not found or already returned."
)

// -------------- Clock --------------

type Clock interface{ Now() time.Time }
type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// -------------- Service --------------

type Service struct {
	store *Store
	clock Clock
	log   logrus.FieldLogger
}

func NewService(conn *sqlx.DB, log logrus.FieldLogger) *Service {
	return &Service{
		store: NewStore(conn),
		clock: realClock{},
		log:   log,
	}
}

// WithClock は時刻を固定したいテスト用
func (s *Service) WithClock(c Clock) *Service {
	s.clock = c
	return s
}

// parseID はフォーム入力の ID を整数に変換する。数値でなければ INVALID_ARGUMENT
func parseID(field string, v IDText) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(string(v)), 10, 64)
	if err != nil {
		return 0, apierr.ErrInvalid(field + " must be an integer")
	}
	return id, nil
}

// Borrow lends a book to a user. The availability check, the flag update and
// the transaction insert commit together or not at all.
func (s *Service) Borrow(ctx context.Context, in BorrowRequest) (BorrowResponse, error) {
	userID, err := parseID("user_id", in.UserID)
	if err != nil {
		return BorrowResponse{}, err
	}
	bookID, err := parseID("book_id", in.BookID)
	if err != nil {
		return BorrowResponse{}, err
	}

	log := logging.FromContext(ctx, s.log).WithFields(logrus.Fields{"user_id": userID, "book_id": bookID})
	borrowDate := formatTime(s.clock.Now())

	txID, err := s.store.ExecBorrow(ctx, userID, bookID, borrowDate)
	switch {
	case err == nil:
	case errors.Is(err, ErrBookNotFound):
		log.Info("borrow refused: no such book")
		return BorrowResponse{}, apierr.ErrNotFound(StatusNotAvailable)
	case errors.Is(err, ErrBookUnavailable):
		log.Info("borrow refused: book already lent")
		return BorrowResponse{}, apierr.ErrConflict(StatusNotAvailable)
	default:
		log.WithError(err).Error("borrow failed")
		return BorrowResponse{}, apierr.ErrInternal(apierr.MsgInternal)
	}

	log.WithField("transaction_id", txID).Info("book borrowed")
	return BorrowResponse{
		Status:        StatusBorrowed,
		TransactionID: txID,
		UserID:        userID,
		BookID:        bookID,
		BorrowDate:    borrowDate,
	}, nil
}

// Return closes an open transaction and makes its book available again, in
// one database transaction.
func (s *Service) Return(ctx context.Context, in ReturnRequest) (ReturnResponse, error) {
	txID, err := parseID("transaction_id", in.TransactionID)
	if err != nil {
		return ReturnResponse{}, err
	}

	log := logging.FromContext(ctx, s.log).WithField("transaction_id", txID)
	returnDate := formatTime(s.clock.Now())

	bookID, err := s.store.ExecReturn(ctx, txID, returnDate)
	switch {
	case err == nil:
	case errors.Is(err, ErrTransactionNotOpen):
		log.Info("return refused: not found or already returned")
		return ReturnResponse{}, apierr.ErrNotFound(StatusNotFound)
	default:
		log.WithError(err).Error("return failed")
		return ReturnResponse{}, apierr.ErrInternal(apierr.MsgInternal)
	}

	log.WithField("book_id", bookID).Info("book returned")
	return ReturnResponse{
		Status:        StatusReturned,
		TransactionID: txID,
		BookID:        bookID,
		ReturnDate:    returnDate,
	}, nil
}

func (s *Service) GetTransaction(ctx context.Context, id int64) (TransactionResponse, error) {
	t, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		if errors.Is(err, ErrTransactionMissing) {
			return TransactionResponse{}, apierr.ErrNotFound("transaction not found")
		}
		logging.FromContext(ctx, s.log).WithError(err).Error("get transaction failed")
		return TransactionResponse{}, apierr.ErrInternal(apierr.MsgInternal)
	}
	return toResponse(*t), nil
}

func (s *Service) ListTransactions(ctx context.Context, f TransactionFilter, p Page) (ListTransactionsResult, error) {
	p = p.normalized()
	rows, total, err := s.store.ListTransactions(ctx, f, p)
	if err != nil {
		logging.FromContext(ctx, s.log).WithError(err).Error("list transactions failed")
		return ListTransactionsResult{}, apierr.ErrInternal(apierr.MsgInternal)
	}

	items := make([]TransactionResponse, 0, len(rows))
	for _, r := range rows {
		items = append(items, toResponse(r))
	}

	next := p.Offset + p.Limit
	if next >= int(total) {
		next = 0
	} // 0=終端
	return ListTransactionsResult{Items: items, Total: total, NextOffset: next}, nil
}
