// Package reports exports the loan ledger for spreadsheet tools.
package reports

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"libris-backend/internal/circulation"
	"libris-backend/internal/platform/apierr"
)

// 出力エンコーディング
const (
	EncodingUTF8    = "utf-8"
	EncodingUTF8BOM = "utf-8-bom" // Excel でそのまま開ける
	EncodingSJIS    = "shift_jis" // Windows の「ANSI（CP932）」相当
)

const exportPageSize = 500

var header = []string{"id", "user_id", "user_name", "book_id", "book_title", "borrow_date", "return_date", "status"}

// TransactionLister は circulation.Service が満たす
type TransactionLister interface {
	ListTransactions(ctx context.Context, f circulation.TransactionFilter, p circulation.Page) (circulation.ListTransactionsResult, error)
}

type Service struct {
	lister TransactionLister
}

func NewService(l TransactionLister) *Service { return &Service{lister: l} }

// lookupEncoding は出力エンコーディングと Content-Type 用の charset を返す。
// UTF-8 のときは変換不要なので nil を返す
func lookupEncoding(name string) (encoding.Encoding, string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", EncodingUTF8, "utf8":
		return nil, "utf-8", nil
	case EncodingUTF8BOM:
		return unicode.UTF8BOM, "utf-8", nil
	case EncodingSJIS, "sjis", "cp932":
		return japanese.ShiftJIS, "shift_jis", nil
	default:
		return nil, "", apierr.ErrInvalid(fmt.Sprintf("unsupported encoding %q", name))
	}
}

// Charset returns the MIME charset for an export encoding name.
func Charset(name string) (string, error) {
	_, cs, err := lookupEncoding(name)
	return cs, err
}

// ExportTransactionsCSV writes every transaction matching f, oldest first,
// as CSV in the requested encoding.
func (s *Service) ExportTransactionsCSV(ctx context.Context, w io.Writer, f circulation.TransactionFilter, enc string) error {
	e, _, err := lookupEncoding(enc)
	if err != nil {
		return err
	}

	out := w
	var tw *transform.Writer
	if e != nil {
		// Shift_JIS に無い文字（絵文字など）は置換文字にして出力を続ける
		tw = transform.NewWriter(w, encoding.ReplaceUnsupported(e.NewEncoder()))
		out = tw
	}

	cw := csv.NewWriter(out)
	if err := cw.Write(header); err != nil {
		return err
	}

	p := circulation.Page{Limit: exportPageSize, Order: "asc"}
	for {
		res, err := s.lister.ListTransactions(ctx, f, p)
		if err != nil {
			return err
		}
		for _, it := range res.Items {
			if err := cw.Write(record(it)); err != nil {
				return err
			}
		}
		if res.NextOffset == 0 {
			break
		}
		p.Offset = res.NextOffset
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	if tw != nil {
		return tw.Close()
	}
	return nil
}

func record(t circulation.TransactionResponse) []string {
	status := "returned"
	if t.Open {
		status = "open"
	}
	return []string{
		strconv.FormatInt(t.ID, 10),
		optInt(t.UserID),
		optStr(t.UserName),
		optInt(t.BookID),
		optStr(t.BookTitle),
		optStr(t.BorrowDate),
		optStr(t.ReturnDate),
		status,
	}
}

func optInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func optStr(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
