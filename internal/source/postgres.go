package source

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const (
	pgUndefinedColumn = "42703"
	pgUndefinedTable  = "42P01"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ValidTableName reports whether name is a plain or schema-qualified identifier.
func ValidTableName(name string) bool {
	return tableNamePattern.MatchString(name)
}

// PoolOptions configure the PostgreSQL connection pool.
type PoolOptions struct {
	DSN             string
	MaxConns        int
	MinConns        int
	ConnMaxLifetime time.Duration
}

// NewPool configures a PostgreSQL connection pool.
func NewPool(ctx context.Context, opts PoolOptions) (*pgxpool.Pool, error) {
	if opts.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}

	if opts.MaxConns > 0 {
		poolConfig.MaxConns = int32(opts.MaxConns)
	}
	if opts.MinConns > 0 {
		poolConfig.MinConns = int32(opts.MinConns)
	}
	if opts.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = opts.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	return pool, nil
}

// Querier is the subset of pgxpool.Pool used by PostgresReader.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresReader scans one table holding a count stream.
type PostgresReader struct {
	db     Querier
	table  string
	opts   Options
	logger zerolog.Logger
}

// NewPostgres constructs a reader over table. The table name must satisfy ValidTableName.
func NewPostgres(db Querier, table string, opts Options) *PostgresReader {
	logger := opts.Logger.With().Str("component", "postgres_source").Str("table", table).Logger()
	opts.Logger = logger
	return &PostgresReader{db: db, table: table, opts: opts, logger: logger}
}

// Identity implements Reader.
func (r *PostgresReader) Identity() string {
	return "postgres:" + r.table
}

func (r *PostgresReader) query(schema Schema) string {
	cols := make([]string, 0, 3)
	for _, name := range schema.Columns() {
		cols = append(cols, pgx.Identifier{name}.Sanitize())
	}
	table := pgx.Identifier(strings.Split(r.table, ".")).Sanitize()
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), table)
}

// Read implements Reader.
func (r *PostgresReader) Read(ctx context.Context, schema Schema) (Table, error) {
	src := r.Identity()

	rows, err := r.db.Query(ctx, r.query(schema))
	if err != nil {
		return Table{}, classifyPgError(src, err)
	}
	defer rows.Close()

	handler := rowHandler{opts: r.opts, src: src}
	out := make([]Row, 0, 256)
	line := 0
	for rows.Next() {
		line++
		var (
			ts       time.Time
			category string
			count    int64
		)
		if err := rows.Scan(&ts, &category, &count); err != nil {
			if rejectErr := handler.reject(parseFailure(src, line, "", err)); rejectErr != nil {
				return Table{}, rejectErr
			}
			continue
		}

		category, catErr := ParseCategory(category)
		if catErr != nil {
			if rejectErr := handler.reject(parseFailure(src, line, schema.Category, catErr)); rejectErr != nil {
				return Table{}, rejectErr
			}
			continue
		}
		if count < 0 {
			countErr := fmt.Errorf("count %d is negative", count)
			if rejectErr := handler.reject(parseFailure(src, line, schema.Count, countErr)); rejectErr != nil {
				return Table{}, rejectErr
			}
			continue
		}

		out = append(out, Row{Timestamp: ts.UTC(), Category: category, Count: count})
	}
	if err := rows.Err(); err != nil {
		return Table{}, classifyPgError(src, err)
	}

	r.logger.Debug().Int("rows", len(out)).Int("skipped", handler.skipped).Msg("postgres source scanned")
	return Table{Rows: out, Skipped: handler.skipped}, nil
}

func classifyPgError(src string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUndefinedColumn:
			return mismatch(src, pgErr.ColumnName, err)
		case pgUndefinedTable:
			return unavailable(src, err)
		}
	}
	return unavailable(src, err)
}

var _ Reader = (*PostgresReader)(nil)
