package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/Harshitk-cp/beliefmarket/internal/api"
	"github.com/Harshitk-cp/beliefmarket/internal/logging"
	"github.com/Harshitk-cp/beliefmarket/internal/metrics"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var errNoDatabase = errors.New("database url is required (--database-url or DATABASE_URL)")

// env is the runtime a database-backed command works against.
type env struct {
	pool     *pgxpool.Pool
	logger   *zap.Logger
	services api.Services
}

func openEnv(ctx context.Context, opts *RootOptions) (*env, error) {
	if opts.DatabaseURL == "" {
		return nil, errNoDatabase
	}
	logger := logging.Must(opts.LogLevel)

	pool, err := pgxpool.New(ctx, opts.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &env{
		pool:     pool,
		logger:   logger,
		services: api.NewServices(pool, api.EpochConfigFromEnv(), metrics.New(), logger),
	}, nil
}

func (e *env) Close() {
	_ = e.logger.Sync()
	e.pool.Close()
}

func parseBeliefID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid belief id %q: %w", s, err)
	}
	return id, nil
}

func parseEpoch(s string) (int64, error) {
	epoch, err := strconv.ParseInt(s, 10, 64)
	if err != nil || epoch < 0 {
		return 0, fmt.Errorf("invalid epoch %q: must be a non-negative integer", s)
	}
	return epoch, nil
}
