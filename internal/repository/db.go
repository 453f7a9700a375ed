package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/policy-extractor/internal/common"
)

type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	DialTimeout     time.Duration
}

// DB is a database/sql handle plus the dialect the queries are rebound for.
type DB struct {
	*sql.DB
	Dialect Dialect
	pool    *pgxpool.Pool
	logger  *slog.Logger
}

// DialectFor picks postgres for postgres:// URLs and sqlite for anything else.
func DialectFor(dsn string) Dialect {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return Postgres
	}
	return SQLite
}

// Open connects to the configured database. Postgres goes through a pgx pool
// wrapped as *sql.DB; everything else is a modernc sqlite file or ":memory:".
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, common.InvalidInput("database dsn is required")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}

	dialect := DialectFor(cfg.DSN)
	logger.Info("connecting to database", "dialect", dialect)

	var (
		sqldb *sql.DB
		pool  *pgxpool.Pool
	)
	switch dialect {
	case Postgres:
		pc, err := pgxpool.ParseConfig(cfg.DSN)
		if err != nil {
			logger.Error("failed to parse database dsn", "error", err)
			return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
		}
		if cfg.MaxOpenConns > 0 {
			pc.MaxConns = int32(cfg.MaxOpenConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			pc.MaxConnLifetime = cfg.ConnMaxLifetime
		}
		pc.ConnConfig.RuntimeParams["application_name"] = "policy-extractor"

		dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
		pool, err = pgxpool.NewWithConfig(dialCtx, pc)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
		}
		sqldb = stdlib.OpenDBFromPool(pool)
	default:
		var err error
		sqldb, err = sql.Open("sqlite", sqliteDSN(cfg.DSN))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
		}
		// one writer; also keeps ":memory:" a single database
		sqldb.SetMaxOpenConns(1)
	}

	if dialect != SQLite {
		if cfg.MaxOpenConns > 0 {
			sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			sqldb.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		}
	}

	db := &DB{DB: sqldb, Dialect: dialect, pool: pool, logger: logger}
	if err := db.HealthCheck(ctx, cfg.DialTimeout); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("successfully connected to database", "dialect", dialect)
	return db, nil
}

func sqliteDSN(dsn string) string {
	if dsn == ":memory:" || strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// Close closes the database connections gracefully.
func (db *DB) Close() {
	db.logger.Info("closing database connections")
	if err := db.DB.Close(); err != nil {
		db.logger.Error("failed to close database", "error", err)
	}
	if db.pool != nil {
		db.pool.Close()
	}
}

// HealthCheck pings the database to catch DSN issues early.
func (db *DB) HealthCheck(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := db.PingContext(ctx); err != nil {
		db.logger.Error("database ping failed", "error", err)
		return fmt.Errorf("%w: ping: %v", common.ErrDatabase, err)
	}
	db.logger.Debug("database ping successful")
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS policies (
		document_id TEXT PRIMARY KEY,
		record TEXT NOT NULL,
		insurer TEXT NOT NULL,
		policy_number TEXT NOT NULL,
		policy_language TEXT NOT NULL,
		extraction_confidence DOUBLE PRECISION NOT NULL,
		needs_review BOOLEAN NOT NULL,
		source_path TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS policies_insurer_idx ON policies (insurer)`,
	`CREATE TABLE IF NOT EXISTS extract_jobs (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		source_path TEXT NOT NULL,
		format TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NULL,
		method TEXT NULL,
		language TEXT NULL,
		extraction_confidence DOUBLE PRECISION NULL,
		needs_review BOOLEAN NOT NULL DEFAULT FALSE,
		error_message TEXT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS extract_jobs_document_idx ON extract_jobs (document_id)`,
}

// Migrate creates the tables if they do not exist.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.logger.Error("migration failed", "error", err)
			return fmt.Errorf("%w: migrate: %v", common.ErrDatabase, err)
		}
	}
	db.logger.Debug("schema migrated", "dialect", db.Dialect)
	return nil
}

// Rebind rewrites ? placeholders to $n for postgres.
func (db *DB) Rebind(query string) string {
	return rebind(db.Dialect, query)
}

func rebind(d Dialect, query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
