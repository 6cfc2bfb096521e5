package testutil

import (
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/ejwhite7/zendesk-academy/internal/data/db"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/logger"
)

var (
	pgOnce sync.Once
	pgDB   *gorm.DB
	pgErr  error

	logOnce sync.Once
	logg    *logger.Logger
	logErr  error
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	logOnce.Do(func() {
		logg, logErr = logger.New("test")
	})
	if logErr != nil {
		tb.Fatalf("failed to init logger: %v", logErr)
	}
	return logg
}

// DB returns a migrated database. TEST_POSTGRES_DSN selects a shared Postgres
// instance; otherwise every caller gets its own in-memory SQLite database.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()
	if dsn := strings.TrimSpace(os.Getenv("TEST_POSTGRES_DSN")); dsn != "" {
		return postgresDB(tb, dsn)
	}
	return SQLite(tb)
}

func SQLite(tb testing.TB) *gorm.DB {
	tb.Helper()
	name := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_busy_timeout=5000"
	conn, err := db.OpenSQLite(name, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrateAll(conn); err != nil {
		tb.Fatalf("migrate sqlite: %v", err)
	}
	tb.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

func postgresDB(tb testing.TB, dsn string) *gorm.DB {
	tb.Helper()
	pgOnce.Do(func() {
		pgDB, pgErr = gorm.Open(postgres.Open(dsn), &gorm.Config{
			DisableForeignKeyConstraintWhenMigrating: true,
			Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
		})
		if pgErr != nil {
			return
		}
		pgErr = db.AutoMigrateAll(pgDB)
	})
	if pgErr != nil {
		tb.Fatalf("failed to init test db: %v", pgErr)
	}
	return pgDB
}

// Tx begins a transaction rolled back when the test ends. Repos must be handed
// the returned handle through dbctx; on SQLite the single connection is held
// by the transaction.
func Tx(tb testing.TB, db *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := db.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() {
		_ = tx.Rollback().Error
	})
	return tx
}
