// Package db opens and tunes the SQL connection pool for query execution.
package db

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"

	"sqlpilot/internal/config"
	"sqlpilot/internal/util"
)

// Dialect identifies the SQL dialect behind a DSN.
type Dialect string

// Supported dialects.
const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
)

// DriverName returns the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	if d == DialectPostgres {
		return "pgx"
	}
	return "mysql"
}

// DetectDialect infers the dialect from the DSN. URL-style postgres:// or
// postgresql:// DSNs select Postgres; anything else is treated as a
// go-sql-driver/mysql DSN (user:pass@tcp(host:port)/dbname).
func DetectDialect(dsn string) Dialect {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return DialectPostgres
	}
	return DialectMySQL
}

// Conn is a tuned connection pool bound to its dialect.
type Conn struct {
	*sqlx.DB
	Dialect Dialect
}

// Open connects to cfg.DSN, applies the pool limits from cfg.Execution and
// verifies connectivity with a ping. Idle connections are capped at the pool
// size; overflow connections above that are allowed up to MaxOverflow and
// recycled after RecycleSeconds.
func Open(ctx context.Context, cfg *config.Config) (*Conn, error) {
	dialect := DetectDialect(cfg.DSN)
	pool, err := sqlx.Open(dialect.DriverName(), cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	pool.SetMaxIdleConns(cfg.Execution.PoolSize)
	pool.SetMaxOpenConns(cfg.Execution.PoolSize + cfg.Execution.MaxOverflow)
	pool.SetConnMaxLifetime(time.Duration(cfg.Execution.RecycleSeconds) * time.Second)
	pool.SetConnMaxIdleTime(30 * time.Minute)

	if err := pool.PingContext(ctx); err != nil {
		util.CloseWithErr(pool, "database")
		return nil, errors.Wrap(err, "ping database")
	}
	util.Infof("connected (%s, pool %d, overflow %d)", dialect, cfg.Execution.PoolSize, cfg.Execution.MaxOverflow)
	return &Conn{DB: pool, Dialect: dialect}, nil
}
