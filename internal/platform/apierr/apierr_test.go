package apierr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"libris-backend/internal/platform/apierr"
)

func Test_ToHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid", apierr.ErrInvalid("bad"), http.StatusBadRequest},
		{"not_found", apierr.ErrNotFound("gone"), http.StatusNotFound},
		{"conflict", apierr.ErrConflict("taken"), http.StatusConflict},
		{"internal", apierr.ErrInternal("x"), http.StatusInternalServerError},
		{"wrapped_conflict", fmt.Errorf("borrow: %w", apierr.ErrConflict("taken")), http.StatusConflict},
		{"plain_error", errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, apierr.ToHTTPStatus(tt.err))
		})
	}
}

func Test_Body_HidesPlainErrors(t *testing.T) {
	body := apierr.Body(errors.New("sqlite: database is locked"))

	assert.Equal(t, apierr.CodeInternal, body.Error.Code)
	assert.Equal(t, apierr.MsgInternal, body.Error.Message)
}

func Test_Is(t *testing.T) {
	err := fmt.Errorf("wrap: %w", apierr.ErrNotFound("no book"))

	assert.True(t, apierr.Is(err, apierr.CodeNotFound))
	assert.False(t, apierr.Is(err, apierr.CodeConflict))
	assert.False(t, apierr.Is(errors.New("x"), apierr.CodeNotFound))
}
