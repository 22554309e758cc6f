package sqldb

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/andresuchdata/restock-forecast/internal/config"
	"github.com/andresuchdata/restock-forecast/internal/domain"
	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

// DB is a sqlx pool whose reads are bounded by a semaphore.
type DB struct {
	*sqlx.DB
	sem *semaphore.Weighted
}

// New wraps an existing sqlx handle.
func New(db *sqlx.DB, maxConcurrent int) *DB {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &DB{
		DB:  db,
		sem: semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

// Open creates a new database connection pool for cfg.Driver.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (*DB, error) {
	driver, dsn, err := DriverDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, domain.NewDataSourceError("connect", fmt.Errorf("%s: %w", driver, err))
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	log.Info().Str("driver", driver).Msg("database connection established")

	return New(db, cfg.MaxConcurrentQueries), nil
}

// DriverDSN maps the configured driver onto a registered database/sql driver
// name and its connection string.
func DriverDSN(cfg *config.DatabaseConfig) (string, string, error) {
	switch cfg.Driver {
	case "", "pgx":
		return "pgx", cfg.PostgresDSN(), nil
	case "postgres":
		return "postgres", cfg.PostgresDSN(), nil
	case "mysql":
		dsn, err := mysqlDSN(cfg)
		return "mysql", dsn, err
	default:
		return "", "", fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// mysqlDSN accepts mysql:// or mariadb:// URLs, a native DSN, or the
// discrete DB_* settings.
func mysqlDSN(cfg *config.DatabaseConfig) (string, error) {
	c := mysql.NewConfig()
	c.ParseTime = true
	c.Net = "tcp"

	switch {
	case strings.HasPrefix(cfg.URL, "mysql://") || strings.HasPrefix(cfg.URL, "mariadb://"):
		u, err := url.Parse(cfg.URL)
		if err != nil {
			return "", fmt.Errorf("parse dsn: %w", err)
		}
		if u.User != nil {
			c.User = u.User.Username()
			c.Passwd, _ = u.User.Password()
		}
		c.Addr = u.Host
		c.DBName = strings.TrimPrefix(u.Path, "/")
		if c.User == "" || c.Addr == "" || c.DBName == "" {
			return "", fmt.Errorf("incomplete mysql dsn (user/host/db)")
		}
	case cfg.URL != "":
		parsed, err := mysql.ParseDSN(cfg.URL)
		if err != nil {
			return "", fmt.Errorf("parse dsn: %w", err)
		}
		parsed.ParseTime = true
		return parsed.FormatDSN(), nil
	default:
		c.User = cfg.User
		c.Passwd = cfg.Password
		c.Addr = net.JoinHostPort(cfg.Host, cfg.Port)
		c.DBName = cfg.DBName
	}

	return c.FormatDSN(), nil
}

// SelectContext runs a bounded read and scans every row into dest.
func (db *DB) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	if err := db.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("could not acquire semaphore: %w", err)
	}
	defer db.sem.Release(1)

	return db.DB.SelectContext(ctx, dest, db.Rebind(query), args...)
}
