package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

// Migrator применяет SQL-миграции из каталога migrations через goose
type Migrator struct {
	db     *sql.DB
	dir    string
	logger *zap.Logger
}

func NewMigrator(pool *pgxpool.Pool, dir string, logger *zap.Logger) (*Migrator, error) {
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}

	// goose работает с *sql.DB, берём его поверх того же пула
	return &Migrator{
		db:     stdlib.OpenDBFromPool(pool),
		dir:    dir,
		logger: logger,
	}, nil
}

// Up применяет все ещё не применённые миграции
func (m *Migrator) Up(ctx context.Context) error {
	before, err := m.Version(ctx)
	if err != nil {
		return err
	}

	if err := goose.UpContext(ctx, m.db, m.dir); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	after, err := m.Version(ctx)
	if err != nil {
		return err
	}

	m.logger.Info("Database schema is up to date",
		zap.String("dir", m.dir),
		zap.Int64("from_version", before),
		zap.Int64("to_version", after),
	)
	return nil
}

func (m *Migrator) Version(ctx context.Context) (int64, error) {
	version, err := goose.GetDBVersionContext(ctx, m.db)
	if err != nil {
		return 0, fmt.Errorf("get schema version: %w", err)
	}
	return version, nil
}

// Close закрывает *sql.DB; пул закрывает main
func (m *Migrator) Close() error {
	return m.db.Close()
}
