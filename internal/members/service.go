package members

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

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apierr.ErrInvalid("name is required")
	}
	return name, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]UserResponse, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		logging.FromContext(ctx, s.log).WithError(err).Error("list users failed")
		return nil, apierr.ErrInternal(apierr.MsgInternal)
	}
	res := make([]UserResponse, 0, len(users))
	for _, u := range users {
		res = append(res, toResponse(u))
	}
	return res, nil
}

func (s *Service) GetUser(ctx context.Context, id int64) (UserResponse, error) {
	if id <= 0 {
		return UserResponse{}, apierr.ErrInvalid("id must be > 0")
	}
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return UserResponse{}, apierr.ErrNotFound("user not found")
		}
		logging.FromContext(ctx, s.log).WithError(err).Error("get user failed")
		return UserResponse{}, apierr.ErrInternal(apierr.MsgInternal)
	}
	return toResponse(*u), nil
}

func (s *Service) AddUser(ctx context.Context, in CreateUserRequest) (UserResponse, error) {
	name, err := normalizeName(in.Name)
	if err != nil {
		return UserResponse{}, err
	}
	u, err := s.store.InsertUser(ctx, name)
	if err != nil {
		logging.FromContext(ctx, s.log).WithError(err).Error("add user failed")
		return UserResponse{}, apierr.ErrInternal(apierr.MsgInternal)
	}
	logging.FromContext(ctx, s.log).WithField("user_id", u.ID).Info("user added")
	return toResponse(*u), nil
}
