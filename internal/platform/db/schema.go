package db

import (
	"context"
	"fmt"
)

// テーブル定義（カラム名は既存の library.db と互換）
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS books (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT,
		author TEXT,
		available INTEGER DEFAULT 1)`,
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER,
		book_id INTEGER,
		borrow_date TEXT,
		return_date TEXT)`,
}

// EnsureSchema creates the books, users and transactions tables when they are
// missing. Existing tables and rows are left untouched, so it runs on every
// startup.
func EnsureSchema(ctx context.Context, db DBTX) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
