// Package apierr is the error model shared by the services and their HTTP
// handlers.
package apierr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT" // 貸出中など
	CodeInternal        Code = "INTERNAL"
)

// MsgInternal はストア障害時に利用者へ見せる唯一のメッセージ
const MsgInternal = "An error occurred."

type APIError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string      { return fmt.Sprintf("%s: %s", e.Code, e.Message) }
func ErrInvalid(msg string) *APIError  { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrNotFound(msg string) *APIError { return &APIError{Code: CodeNotFound, Message: msg} }
func ErrConflict(msg string) *APIError { return &APIError{Code: CodeConflict, Message: msg} }
func ErrInternal(msg string) *APIError { return &APIError{Code: CodeInternal, Message: msg} }

// Is reports whether err carries an *APIError with the given code.
func Is(err error, code Code) bool {
	var api *APIError
	return errors.As(err, &api) && api.Code == code
}

func ToHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument:
			return http.StatusBadRequest
		case CodeNotFound:
			return http.StatusNotFound
		case CodeConflict:
			return http.StatusConflict
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}

// ---------- handler helpers ----------

type ErrorDTO struct {
	Error *APIError `json:"error"`
}

// Body は任意のエラーをレスポンス形式に変換する。
// APIError 以外は内部情報を出さず MsgInternal に置き換える。
func Body(err error) ErrorDTO {
	var api *APIError
	if errors.As(err, &api) {
		return ErrorDTO{Error: api}
	}
	return ErrorDTO{Error: ErrInternal(MsgInternal)}
}

// Abort writes the error response with the status ToHTTPStatus picks.
func Abort(c *gin.Context, err error) {
	c.AbortWithStatusJSON(ToHTTPStatus(err), Body(err))
}
