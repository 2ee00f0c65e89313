package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"libris-backend/internal/platform/apierr"
	"libris-backend/internal/platform/logging"
)

type Service struct {
	store *Store
	log   logrus.FieldLogger
}

func NewService(conn *sqlx.DB, log logrus.FieldLogger) *Service {
	return &Service{store: NewStore(conn), log: log}
}

// Search returns the books whose title or author contains keyword. An empty
// keyword matches every book; no hits is an empty result, not an error.
func (s *Service) Search(ctx context.Context, keyword string) (SearchResult, error) {
	books, err := s.store.Search(ctx, keyword)
	if err != nil {
		logging.FromContext(ctx, s.log).WithError(err).WithField("keyword", keyword).Error("search failed")
		return SearchResult{}, apierr.ErrInternal(apierr.MsgInternal)
	}

	items := make([]BookResponse, 0, len(books))
	for _, b := range books {
		items = append(items, toResponse(b))
	}
	return SearchResult{Keyword: keyword, Items: items, Total: len(items)}, nil
}

func (s *Service) GetBook(ctx context.Context, id int64) (BookResponse, error) {
	if id <= 0 {
		return BookResponse{}, apierr.ErrInvalid("id must be > 0")
	}
	b, err := s.store.GetBook(ctx, id)
	if err != nil {
		if errors.Is(err, ErrBookNotFound) {
			return BookResponse{}, apierr.ErrNotFound("book not found")
		}
		logging.FromContext(ctx, s.log).WithError(err).Error("get book failed")
		return BookResponse{}, apierr.ErrInternal(apierr.MsgInternal)
	}
	return toResponse(*b), nil
}

func (s *Service) ListBooks(ctx context.Context, availableOnly bool) ([]BookResponse, error) {
	books, err := s.store.ListBooks(ctx, availableOnly)
	if err != nil {
		logging.FromContext(ctx, s.log).WithError(err).Error("list books failed")
		return nil, apierr.ErrInternal(apierr.MsgInternal)
	}
	items := make([]BookResponse, 0, len(books))
	for _, b := range books {
		items = append(items, toResponse(b))
	}
	return items, nil
}

// 書籍登録（貸出可能状態で作成）
func (s *Service) AddBook(ctx context.Context, in CreateBookRequest) (BookResponse, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return BookResponse{}, apierr.ErrInvalid("title is required")
	}
	author := strings.TrimSpace(in.Author)

	b, err := s.store.InsertBook(ctx, title, author)
	if err != nil {
		logging.FromContext(ctx, s.log).WithError(err).Error("add book failed")
		return BookResponse{}, apierr.ErrInternal(apierr.MsgInternal)
	}

	logging.FromContext(ctx, s.log).WithField("book_id", b.ID).Info("book added")
	return toResponse(*b), nil
}
