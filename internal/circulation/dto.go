package circulation

import (
	"encoding/json"
	"strings"
)

// IDText はフォームに入力されたままの ID。JSON では文字列・数値のどちらも受け付ける
type IDText string

func (t *IDText) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = IDText(s)
		return nil
	}
	*t = IDText(strings.TrimSpace(string(b)))
	return nil
}

// 貸出リクエスト
type BorrowRequest struct {
	UserID IDText `json:"user_id" binding:"required"`
	BookID IDText `json:"book_id" binding:"required"`
}

// 返却リクエスト
type ReturnRequest struct {
	TransactionID IDText `json:"transaction_id" binding:"required"`
}

type BorrowResponse struct {
	Status        string `json:"status"`
	TransactionID int64  `json:"transaction_id"`
	UserID        int64  `json:"user_id"`
	BookID        int64  `json:"book_id"`
	BorrowDate    string `json:"borrow_date"`
}

type ReturnResponse struct {
	Status        string `json:"status"`
	TransactionID int64  `json:"transaction_id"`
	BookID        int64  `json:"book_id"`
	ReturnDate    string `json:"return_date"`
}

type TransactionResponse struct {
	ID         int64   `json:"id"`
	UserID     *int64  `json:"user_id"`
	BookID     *int64  `json:"book_id"`
	BorrowDate *string `json:"borrow_date"`
	ReturnDate *string `json:"return_date"`
	Open       bool    `json:"open"`
	BookTitle  *string `json:"book_title,omitempty"`
	UserName   *string `json:"user_name,omitempty"`
}

type ListTransactionsResult struct {
	Items      []TransactionResponse `json:"items"`
	Total      int64                 `json:"total"`
	NextOffset int                   `json:"next_offset"`
}

func toResponse(t Transaction) TransactionResponse {
	resp := TransactionResponse{ID: t.ID, Open: t.Open()}
	if t.UserID.Valid {
		v := t.UserID.Int64
		resp.UserID = &v
	}
	if t.BookID.Valid {
		v := t.BookID.Int64
		resp.BookID = &v
	}
	if t.BorrowDate.Valid {
		v := t.BorrowDate.String
		resp.BorrowDate = &v
	}
	if t.ReturnDate.Valid {
		v := t.ReturnDate.String
		resp.ReturnDate = &v
	}
	if t.BookTitle.Valid {
		v := t.BookTitle.String
		resp.BookTitle = &v
	}
	if t.UserName.Valid {
		v := t.UserName.String
		resp.UserName = &v
	}
	return resp
}
