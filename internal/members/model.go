package members

import "database/sql"

// User は users テーブルの1行を表す。作成後は更新しない
type User struct {
	ID   int64          `db:"id"`
	Name sql.NullString `db:"name"`
}
