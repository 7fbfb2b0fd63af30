package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

const utf8BOM = "\ufeff"

// CSVReader scans a CSV file with a header row.
type CSVReader struct {
	path   string
	opts   Options
	logger zerolog.Logger
}

// NewCSV constructs a reader for the file at path.
func NewCSV(path string, opts Options) *CSVReader {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	logger := opts.Logger.With().Str("component", "csv_source").Str("path", path).Logger()
	opts.Logger = logger
	return &CSVReader{path: path, opts: opts, logger: logger}
}

// Identity implements Reader.
func (r *CSVReader) Identity() string {
	return "csv:" + r.path
}

// Read implements Reader. The scan runs in its own goroutine so a stalled
// filesystem is abandoned once ctx is done.
func (r *CSVReader) Read(ctx context.Context, schema Schema) (Table, error) {
	type result struct {
		table Table
		err   error
	}

	done := make(chan result, 1)
	go func() {
		table, err := r.scan(ctx, schema)
		done <- result{table: table, err: err}
	}()

	select {
	case <-ctx.Done():
		return Table{}, ctx.Err()
	case res := <-done:
		return res.table, res.err
	}
}

func (r *CSVReader) scan(ctx context.Context, schema Schema) (Table, error) {
	src := r.Identity()

	file, err := os.Open(r.path)
	if err != nil {
		return Table{}, unavailable(src, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Table{}, mismatch(src, "", errors.New("missing header row"))
		}
		return Table{}, unavailable(src, fmt.Errorf("read header: %w", err))
	}

	idx, err := columnIndex(header, schema)
	if err != nil {
		var colErr *missingColumnError
		if errors.As(err, &colErr) {
			return Table{}, mismatch(src, colErr.column, err)
		}
		return Table{}, mismatch(src, "", err)
	}

	handler := rowHandler{opts: r.opts, src: src}
	rows := make([]Row, 0, 256)
	line := 0
	for {
		if err := ctx.Err(); err != nil {
			return Table{}, err
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				if rejectErr := handler.reject(parseFailure(src, line, "", err)); rejectErr != nil {
					return Table{}, rejectErr
				}
				continue
			}
			return Table{}, unavailable(src, err)
		}

		row, rowErr := coerceRow(record, idx, schema, src, line)
		if rowErr != nil {
			if rejectErr := handler.reject(rowErr); rejectErr != nil {
				return Table{}, rejectErr
			}
			continue
		}
		rows = append(rows, row)
	}

	r.logger.Debug().Int("rows", len(rows)).Int("skipped", handler.skipped).Msg("csv source scanned")
	return Table{Rows: rows, Skipped: handler.skipped}, nil
}

type columns struct {
	timestamp int
	category  int
	count     int
}

type missingColumnError struct {
	column string
}

func (e *missingColumnError) Error() string {
	return fmt.Sprintf("required column %q not found", e.column)
}

func columnIndex(header []string, schema Schema) (columns, error) {
	positions := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, utf8BOM)
		}
		key := strings.ToLower(strings.TrimSpace(name))
		if _, exists := positions[key]; !exists {
			positions[key] = i
		}
	}

	lookup := func(name string) (int, error) {
		pos, ok := positions[strings.ToLower(name)]
		if !ok {
			return 0, &missingColumnError{column: name}
		}
		return pos, nil
	}

	var idx columns
	var err error
	if idx.timestamp, err = lookup(schema.Timestamp); err != nil {
		return columns{}, err
	}
	if idx.category, err = lookup(schema.Category); err != nil {
		return columns{}, err
	}
	if idx.count, err = lookup(schema.Count); err != nil {
		return columns{}, err
	}
	return idx, nil
}

func coerceRow(record []string, idx columns, schema Schema, src string, line int) (Row, *Error) {
	cell := func(pos int) string {
		if pos < len(record) {
			return record[pos]
		}
		return ""
	}

	ts, err := ParseTimestamp(cell(idx.timestamp))
	if err != nil {
		return Row{}, parseFailure(src, line, schema.Timestamp, err)
	}
	category, err := ParseCategory(cell(idx.category))
	if err != nil {
		return Row{}, parseFailure(src, line, schema.Category, err)
	}
	count, err := ParseCount(cell(idx.count))
	if err != nil {
		return Row{}, parseFailure(src, line, schema.Count, err)
	}
	return Row{Timestamp: ts, Category: category, Count: count}, nil
}

var _ Reader = (*CSVReader)(nil)
