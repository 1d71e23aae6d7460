package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/orderdesk/internal/config"
	"github.com/example/orderdesk/internal/models"
	"github.com/example/orderdesk/internal/repository"
)

// OpenStore connects to the backend selected by cfg.DBDriver, prepares its
// schema or indexes, and returns the repositories on top of it.
func OpenStore(ctx context.Context, cfg *config.Config) (*repository.Store, error) {
	if cfg.DBDriver == config.DriverMongo {
		client, db, err := ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		if err := repository.EnsureMongoIndexes(ctx, db); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		return repository.NewMongoStore(client, db), nil
	}

	conn, err := Connect(cfg)
	if err != nil {
		return nil, err
	}
	if err := Migrate(conn); err != nil {
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return repository.NewGormStore(conn), nil
}

// Connect opens the relational database named by cfg.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	level := logger.Info
	if cfg.IsProduction() {
		level = logger.Warn
	}

	switch cfg.DBDriver {
	case config.DriverSQLite:
		return Open(sqlite.Open(cfg.DatabaseURL), level)
	case config.DriverPostgres:
		if err := ensureDatabase(cfg.DatabaseURL); err != nil {
			return nil, fmt.Errorf("failed to ensure database: %w", err)
		}
		return Open(postgres.Open(cfg.DatabaseURL), level)
	}
	return nil, fmt.Errorf("unsupported relational driver %q", cfg.DBDriver)
}

// Open wraps gorm.Open with the settings the repositories expect.
func Open(dialector gorm.Dialector, level logger.LogLevel) (*gorm.DB, error) {
	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return conn, nil
}

// Migrate creates or updates the tables for all models.
func Migrate(conn *gorm.DB) error {
	migrations := []interface{}{
		&models.User{},
		&models.Product{},
		&models.Order{},
		&models.OrderItem{},
	}

	for _, migration := range migrations {
		if err := conn.AutoMigrate(migration); err != nil {
			return err
		}
	}

	return nil
}

func ensureDatabase(dsn string) error {
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return nil
	}

	parsed, err := url.Parse(dsn)
	if err != nil {
		return err
	}

	dbName := strings.TrimPrefix(parsed.Path, "/")
	if dbName == "" {
		return nil
	}

	parsed.Path = "/postgres"
	masterDSN := parsed.String()

	sqlDB, err := sql.Open("postgres", masterDSN)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return err
	}

	var exists bool
	if err := sqlDB.QueryRow("SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", dbName).Scan(&exists); err != nil {
		return err
	}

	if exists {
		return nil
	}

	_, err = sqlDB.Exec("CREATE DATABASE " + pq.QuoteIdentifier(dbName))
	return err
}
