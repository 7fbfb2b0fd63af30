package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tx-dashboard/internal/model"
)

// Schema names the three columns every source carries.
type Schema struct {
	Timestamp string
	Category  string
	Count     string
}

var (
	// StatusSchema is the layout of the transaction status source.
	StatusSchema = Schema{Timestamp: "timestamp", Category: "status", Count: "count"}
	// AuthSchema is the layout of the auth-code source.
	AuthSchema = Schema{Timestamp: "timestamp", Category: "auth_code", Count: "count"}
)

// Columns returns the required column names in declaration order.
func (s Schema) Columns() []string {
	return []string{s.Timestamp, s.Category, s.Count}
}

// Row is one typed row: an instant, a category key and a count.
type Row struct {
	Timestamp time.Time
	Category  string
	Count     int64
}

// Table is the result of one full scan.
type Table struct {
	Rows []Row
	// Skipped counts rows dropped under the lenient policy.
	Skipped int
}

// Reader performs a full scan of one tabular source.
type Reader interface {
	// Identity names the location read, used as a cache key component.
	Identity() string
	Read(ctx context.Context, schema Schema) (Table, error)
}

// Options control row-level parse failures.
type Options struct {
	// Lenient skips rows that fail coercion instead of failing the whole source.
	Lenient bool
	Logger  zerolog.Logger
}

// ReadStatus scans r as a status source. The int result is the number of skipped rows.
func ReadStatus(ctx context.Context, r Reader) ([]model.StatusRecord, int, error) {
	table, err := read(ctx, r, StatusSchema)
	if err != nil {
		return nil, 0, err
	}
	records := make([]model.StatusRecord, len(table.Rows))
	for i, row := range table.Rows {
		records[i] = model.StatusRecord{Timestamp: row.Timestamp, Status: row.Category, Count: row.Count}
	}
	return records, table.Skipped, nil
}

// ReadAuth scans r as an auth-code source. The int result is the number of skipped rows.
func ReadAuth(ctx context.Context, r Reader) ([]model.AuthRecord, int, error) {
	table, err := read(ctx, r, AuthSchema)
	if err != nil {
		return nil, 0, err
	}
	records := make([]model.AuthRecord, len(table.Rows))
	for i, row := range table.Rows {
		records[i] = model.AuthRecord{Timestamp: row.Timestamp, AuthCode: row.Category, Count: row.Count}
	}
	return records, table.Skipped, nil
}

// read runs the scan and reports a deadline or cancellation as an unavailable source.
func read(ctx context.Context, r Reader, schema Schema) (Table, error) {
	table, err := r.Read(ctx, schema)
	if err == nil {
		return table, nil
	}
	if KindOf(err) != "" {
		return Table{}, err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Table{}, unavailable(r.Identity(), fmt.Errorf("read interrupted: %w", err))
	}
	return Table{}, unavailable(r.Identity(), err)
}

// rowHandler applies the strict or lenient policy to a coercion failure.
type rowHandler struct {
	opts    Options
	src     string
	skipped int
}

// reject returns the error to abort with, or nil when the row is skipped.
func (h *rowHandler) reject(err *Error) error {
	if !h.opts.Lenient {
		return err
	}
	h.skipped++
	h.opts.Logger.Warn().
		Str("source", h.src).
		Int("row", err.Row).
		Str("column", err.Column).
		Err(err.Err).
		Msg("skipping unparsable row")
	return nil
}
