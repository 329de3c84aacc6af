package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS rules (
	id INTEGER PRIMARY KEY,
	description TEXT
)`

type sqlite struct {
	db *sql.DB
}

func openSQLite(path string) (*sqlite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to sqlite %s: %w", path, err)
	}

	// One writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, stmt := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		sqliteSchema,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %q: %w", stmt, err)
		}
	}
	return &sqlite{db: db}, nil
}

func (s *sqlite) all(ctx context.Context) ([]row, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, description FROM rules ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []row
	for rows.Next() {
		var (
			r    row
			desc sql.NullString
		)
		if err := rows.Scan(&r.id, &desc); err != nil {
			return nil, err
		}
		r.description = desc.String
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqlite) insert(ctx context.Context, description string) (int64, error) {
	res, err := s.db.ExecContext(ctx, "INSERT INTO rules (description) VALUES (?)", description)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *sqlite) update(ctx context.Context, id int64, description string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "UPDATE rules SET description = ? WHERE id = ?", description, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *sqlite) delete(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM rules WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *sqlite) close() error {
	return s.db.Close()
}
