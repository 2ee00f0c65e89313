package catalog

import (
	"database/sql"
	"fmt"
)

// Book は books テーブルの1行を表す
type Book struct {
	ID        int64          `db:"id"`
	Title     sql.NullString `db:"title"`
	Author    sql.NullString `db:"author"`
	Available bool           `db:"available"`
}

// Display は検索結果の一覧表示形式 "{id}: {title} by {author}"。NULL は "null" と表示する
func (b Book) Display() string {
	return fmt.Sprintf("%d: %s by %s", b.ID, nullText(b.Title), nullText(b.Author))
}

func nullText(s sql.NullString) string {
	if !s.Valid {
		return "null"
	}
	return s.String
}
