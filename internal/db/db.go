// Package db persists rule descriptions, one JSON document per row.
package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"smarthub/internal/metrics"
	"smarthub/internal/migrate"
	"smarthub/internal/models"
)

// ErrNotFound is returned when no row has the requested id
var ErrNotFound = errors.New("rule row not found")

type row struct {
	id          int64
	description string
}

// backend is the driver-specific half of DB
type backend interface {
	all(ctx context.Context) ([]row, error)
	insert(ctx context.Context, description string) (int64, error)
	update(ctx context.Context, id int64, description string) (bool, error)
	delete(ctx context.Context, id int64) (bool, error)
	close() error
}

// DB stores rules in Postgres or SQLite
type DB struct {
	backend  backend
	migrator *migrate.Migrator
	logger   *zap.Logger
}

// Open connects to url. postgres:// and postgresql:// URLs use a pgx pool;
// anything else is taken as a SQLite file path. The rules table is created
// when missing.
func Open(ctx context.Context, url string, logger *zap.Logger) (*DB, error) {
	var (
		b   backend
		err error
	)
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		b, err = openPostgres(ctx, url)
	default:
		b, err = openSQLite(strings.TrimPrefix(url, "sqlite://"))
	}
	if err != nil {
		return nil, err
	}
	return &DB{
		backend:  b,
		migrator: &migrate.Migrator{Loc: time.Local},
		logger:   logger.Named("db"),
	}, nil
}

func (d *DB) Close() error {
	return d.backend.close()
}

// GetRules loads every stored rule. Outdated descriptions are migrated and
// written back first; rows that cannot be decoded are skipped.
func (d *DB) GetRules(ctx context.Context) ([]models.RuleDescription, error) {
	descs, _, err := d.load(ctx)
	return descs, err
}

// Migrate rewrites every outdated row and reports how many changed
func (d *DB) Migrate(ctx context.Context) (int, error) {
	_, migrated, err := d.load(ctx)
	return migrated, err
}

func (d *DB) load(ctx context.Context) ([]models.RuleDescription, int, error) {
	rows, err := d.backend.all(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("load rules: %w", err)
	}

	descs := make([]models.RuleDescription, 0, len(rows))
	migrated := 0
	for _, r := range rows {
		var raw map[string]any
		if err := json.Unmarshal([]byte(r.description), &raw); err != nil || raw == nil {
			d.logger.Warn("Skipping unreadable rule", zap.Int64("id", r.id), zap.Error(err))
			continue
		}

		if upgraded := d.migrator.Migrate(raw); upgraded != nil {
			encoded, err := json.Marshal(upgraded)
			if err != nil {
				return nil, migrated, fmt.Errorf("encode migrated rule %d: %w", r.id, err)
			}
			if _, err := d.backend.update(ctx, r.id, string(encoded)); err != nil {
				return nil, migrated, fmt.Errorf("store migrated rule %d: %w", r.id, err)
			}
			d.logger.Info("Migrated stored rule", zap.Int64("id", r.id))
			metrics.MigratedRules.Inc()
			migrated++
			r.description = string(encoded)
		}

		var desc models.RuleDescription
		if err := json.Unmarshal([]byte(r.description), &desc); err != nil {
			d.logger.Warn("Skipping malformed rule", zap.Int64("id", r.id), zap.Error(err))
			continue
		}
		desc.ID = r.id
		descs = append(descs, desc)
	}
	return descs, migrated, nil
}

// CreateRule stores desc and returns its new id
func (d *DB) CreateRule(ctx context.Context, desc models.RuleDescription) (int64, error) {
	encoded, err := encode(desc)
	if err != nil {
		return 0, err
	}
	id, err := d.backend.insert(ctx, encoded)
	if err != nil {
		return 0, fmt.Errorf("insert rule: %w", err)
	}
	return id, nil
}

func (d *DB) UpdateRule(ctx context.Context, id int64, desc models.RuleDescription) error {
	encoded, err := encode(desc)
	if err != nil {
		return err
	}
	found, err := d.backend.update(ctx, id, encoded)
	if err != nil {
		return fmt.Errorf("update rule %d: %w", id, err)
	}
	if !found {
		return fmt.Errorf("update rule %d: %w", id, ErrNotFound)
	}
	return nil
}

func (d *DB) DeleteRule(ctx context.Context, id int64) error {
	found, err := d.backend.delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete rule %d: %w", id, err)
	}
	if !found {
		return fmt.Errorf("delete rule %d: %w", id, ErrNotFound)
	}
	return nil
}

// encode serializes desc without its id, which lives in its own column
func encode(desc models.RuleDescription) (string, error) {
	desc.ID = 0
	encoded, err := json.Marshal(desc)
	if err != nil {
		return "", fmt.Errorf("encode rule: %w", err)
	}
	return string(encoded), nil
}
