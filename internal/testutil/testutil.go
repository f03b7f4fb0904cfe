// Package testutil provides shared fixtures for repository integration tests.
package testutil

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/harbor-academy/backend/pkg/database"
)

var errMissingDSN = errors.New("missing TEST_POSTGRES_DSN")

var (
	poolOnce sync.Once
	pool     *pgxpool.Pool
	poolErr  error
)

// DB returns a migrated pool for TEST_POSTGRES_DSN, skipping the test when the
// variable is unset.
func DB(tb testing.TB) *pgxpool.Pool {
	tb.Helper()

	poolOnce.Do(func() {
		dsn := os.Getenv("TEST_POSTGRES_DSN")
		if dsn == "" {
			poolErr = errMissingDSN
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		pool, poolErr = database.NewPostgresPool(ctx, dsn, zap.NewNop())
		if poolErr != nil {
			return
		}
		poolErr = database.Migrate(ctx, pool, zap.NewNop())
	})

	if errors.Is(poolErr, errMissingDSN) {
		tb.Skip("set TEST_POSTGRES_DSN to run repository integration tests")
	}
	if poolErr != nil {
		tb.Fatalf("failed to init test db: %v", poolErr)
	}
	return pool
}

// Context returns a context bounded to the test's lifetime.
func Context(tb testing.TB) context.Context {
	tb.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	tb.Cleanup(cancel)
	return ctx
}
