package source

import (
	"errors"
	"fmt"
)

// Kind classifies a source failure.
type Kind string

const (
	KindSourceUnavailable Kind = "SourceUnavailable"
	KindSchemaMismatch    Kind = "SchemaMismatch"
	KindParseError        Kind = "ParseError"
)

var (
	// ErrSourceUnavailable indicates the location could not be opened or read in time.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrSchemaMismatch indicates a required column is missing.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrParse indicates a cell could not be coerced to its declared type.
	ErrParse = errors.New("parse error")
)

// Error describes a failed read of a single source.
type Error struct {
	Kind   Kind
	Source string
	// Row is the 1-based data row (header excluded), zero when not row specific.
	Row    int
	Column string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Source)
	if e.Row > 0 {
		msg += fmt.Sprintf(" row %d", e.Row)
	}
	if e.Column != "" {
		msg += fmt.Sprintf(" column %q", e.Column)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel belonging to the error kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrSourceUnavailable:
		return e.Kind == KindSourceUnavailable
	case ErrSchemaMismatch:
		return e.Kind == KindSchemaMismatch
	case ErrParse:
		return e.Kind == KindParseError
	}
	return false
}

// KindOf extracts the kind of a source failure, or "" when err is not one.
func KindOf(err error) Kind {
	var srcErr *Error
	if errors.As(err, &srcErr) {
		return srcErr.Kind
	}
	return ""
}

func unavailable(src string, err error) *Error {
	return &Error{Kind: KindSourceUnavailable, Source: src, Err: err}
}

func mismatch(src, column string, err error) *Error {
	return &Error{Kind: KindSchemaMismatch, Source: src, Column: column, Err: err}
}

func parseFailure(src string, row int, column string, err error) *Error {
	return &Error{Kind: KindParseError, Source: src, Row: row, Column: column, Err: err}
}
