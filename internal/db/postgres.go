package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS rules (
	id BIGSERIAL PRIMARY KEY,
	description TEXT NOT NULL
)`

type postgres struct {
	pool *pgxpool.Pool
}

func openPostgres(ctx context.Context, url string) (*postgres, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create rules table: %w", err)
	}
	return &postgres{pool: pool}, nil
}

func (p *postgres) all(ctx context.Context) ([]row, error) {
	rows, err := p.pool.Query(ctx, "SELECT id, description FROM rules ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.description); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *postgres) insert(ctx context.Context, description string) (int64, error) {
	var id int64
	err := p.pool.QueryRow(ctx, "INSERT INTO rules (description) VALUES ($1) RETURNING id", description).Scan(&id)
	return id, err
}

func (p *postgres) update(ctx context.Context, id int64, description string) (bool, error) {
	tag, err := p.pool.Exec(ctx, "UPDATE rules SET description = $1 WHERE id = $2", description, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (p *postgres) delete(ctx context.Context, id int64) (bool, error) {
	tag, err := p.pool.Exec(ctx, "DELETE FROM rules WHERE id = $1", id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (p *postgres) close() error {
	p.pool.Close()
	return nil
}
