package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tutor_marketplace/internal/config"
	"github.com/Freeeeeet/tutor_marketplace/internal/repository"
	"github.com/Freeeeeet/tutor_marketplace/internal/repository/memory"
	"github.com/Freeeeeet/tutor_marketplace/internal/repository/postgres"
)

// OpenStore подключает хранилище по STORE_DRIVER. Для postgres перед
// возвратом применяются миграции. closeFn освобождает соединения.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.Store, func(), error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn("Using in-memory store, data is lost on restart")
		return memory.NewStore(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Info("Connected to database")

	migrator, err := NewMigrator(pool, cfg.MigrationsDir, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	defer migrator.Close()

	if err := migrator.Up(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	return postgres.NewStore(pool, cfg.TxMaxRetries, logger), pool.Close, nil
}
