package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/MarkoPoloResearchLab/creatorledger/internal/config"
	"github.com/MarkoPoloResearchLab/creatorledger/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/creatorledger/internal/store/pgstore"
	"github.com/MarkoPoloResearchLab/creatorledger/pkg/ledger"
	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	databasePostgres = "postgres"
	databaseSQLite   = "sqlite"
)

// storeHandle is an opened ledger store together with its schema migration and cleanup.
type storeHandle struct {
	store    ledger.Store
	database string
	migrate  func(ctx context.Context) error
	close    func()
}

func openStore(ctx context.Context, cfg config.Config) (storeHandle, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPgx:
		return openPgxStore(ctx, cfg.DatabaseURL)
	default:
		return openGormStore(ctx, cfg.DatabaseURL)
	}
}

func openPgxStore(ctx context.Context, dsn string) (storeHandle, error) {
	database, _, err := resolveDriver(dsn)
	if err != nil {
		return storeHandle{}, err
	}
	if database != databasePostgres {
		return storeHandle{}, fmt.Errorf("%s store driver requires a postgres url", config.StoreDriverPgx)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return storeHandle{}, fmt.Errorf("pgx pool: %w", err)
	}
	return storeHandle{
		store:    pgstore.New(pool),
		database: databasePostgres,
		migrate: func(ctx context.Context) error {
			return pgstore.ApplySchema(ctx, pool)
		},
		close: pool.Close,
	}, nil
}

func openGormStore(ctx context.Context, dsn string) (storeHandle, error) {
	db, cleanup, database, err := openDatabase(ctx, dsn)
	if err != nil {
		return storeHandle{}, err
	}
	return storeHandle{
		store:    gormstore.New(db),
		database: database,
		migrate: func(ctx context.Context) error {
			return prepareSchema(db.WithContext(ctx), database)
		},
		close: func() { _ = cleanup() },
	}, nil
}

func openDatabase(ctx context.Context, dsn string) (*gorm.DB, func() error, string, error) {
	driver, sqlitePath, err := resolveDriver(dsn)
	if err != nil {
		return nil, nil, "", err
	}

	var db *gorm.DB
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	switch driver {
	case databasePostgres:
		db, err = gorm.Open(postgres.Open(dsn), cfg)
	case databaseSQLite:
		db, err = gorm.Open(sqlite.Open(sqlitePath), cfg)
	default:
		return nil, nil, "", fmt.Errorf("unsupported database scheme %q", driver)
	}
	if err != nil {
		return nil, nil, "", err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, "", err
	}
	if driver == databaseSQLite {
		// SQLite serialises writers; one connection avoids SQLITE_BUSY under concurrent purchases.
		sqlDB.SetMaxOpenConns(1)
	}
	cleanup := func() error { return sqlDB.Close() }
	return db.WithContext(ctx), cleanup, driver, nil
}

func resolveDriver(dsn string) (string, string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return databasePostgres, "", nil
	}
	if strings.HasPrefix(dsn, "sqlite://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", "", fmt.Errorf("parse sqlite url: %w", err)
		}
		path := u.Path
		if path == "" {
			path = u.Host
		}
		if path == "" || path == "/" {
			path = "creatorledger.db"
		}
		sqlitePath, err := normalizeSQLitePath(path)
		return databaseSQLite, sqlitePath, err
	}
	// Anything else is a direct sqlite path.
	sqlitePath, err := normalizeSQLitePath(dsn)
	return databaseSQLite, sqlitePath, err
}

func normalizeSQLitePath(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	if strings.HasPrefix(path, "/") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", err
		}
		return path, nil
	}
	abs := filepath.Join(".", path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", err
	}
	return abs, nil
}

// prepareSchema migrates SQLite through gorm models and Postgres through the versioned DDL.
func prepareSchema(db *gorm.DB, database string) error {
	if database == databaseSQLite {
		if err := gormstore.Migrate(db); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}
	if err := db.Exec(pgstore.Schema()).Error; err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
