// Package window restricts the derived tables to a trailing time range
// anchored at the latest timestamp seen in either source.
package window

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"tx-dashboard/internal/aggregate"
	"tx-dashboard/internal/model"
)

// ErrNoData signals that one of the sources is empty so no anchor exists.
var ErrNoData = errors.New("no data")

// Selector is one of the fixed window choices. A zero Duration means unbounded.
type Selector struct {
	Name     string
	Duration time.Duration
}

var (
	Last15Minutes = Selector{Name: "15m", Duration: 15 * time.Minute}
	LastHour      = Selector{Name: "1h", Duration: time.Hour}
	Last6Hours    = Selector{Name: "6h", Duration: 6 * time.Hour}
	All           = Selector{Name: "all"}
)

// Selectors lists the accepted windows from narrowest to widest.
var Selectors = []Selector{Last15Minutes, LastHour, Last6Hours, All}

// Unbounded reports whether the selector has no lower bound.
func (s Selector) Unbounded() bool {
	return s.Duration == 0
}

func (s Selector) String() string {
	return s.Name
}

// Parse resolves a window name. Short names (15m, 1h, 6h, all) and the
// dashboard labels ("15 minutes", "1 hour", "6 hours", "All") are accepted.
func Parse(raw string) (Selector, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "15m", "15 minutes":
		return Last15Minutes, nil
	case "1h", "1 hour", "60m":
		return LastHour, nil
	case "6h", "6 hours":
		return Last6Hours, nil
	case "all", "unbounded":
		return All, nil
	}
	return Selector{}, fmt.Errorf("unknown window %q (expected 15m, 1h, 6h or all)", raw)
}

// Result is the windowed view of the derived tables.
type Result struct {
	Tables aggregate.Tables
	Anchor time.Time
	// Start is the inclusive lower bound, zero for an unbounded window.
	Start time.Time
}

// Apply keeps rows with timestamp >= anchor-duration, where anchor is the
// maximum timestamp of the status and auth tables. It returns ErrNoData when
// either table is empty.
func Apply(tables aggregate.Tables, sel Selector) (Result, error) {
	anchor, ok := tables.MaxTimestamp()
	if !ok {
		return Result{}, ErrNoData
	}
	if sel.Unbounded() {
		return Result{Tables: tables, Anchor: anchor}, nil
	}

	start := anchor.Add(-sel.Duration)
	keep := func(ts time.Time) bool { return !ts.Before(start) }

	out := aggregate.Tables{
		Status:    make([]model.StatusTotal, 0, len(tables.Status)),
		Auth:      make([]model.AuthTotal, 0, len(tables.Auth)),
		Organized: make([]model.OrganizedRecord, 0, len(tables.Organized)),
	}
	for _, row := range tables.Status {
		if keep(row.Timestamp) {
			out.Status = append(out.Status, row)
		}
	}
	for _, row := range tables.Auth {
		if keep(row.Timestamp) {
			out.Auth = append(out.Auth, row)
		}
	}
	for _, row := range tables.Organized {
		if keep(row.Timestamp) {
			out.Organized = append(out.Organized, row)
		}
	}
	return Result{Tables: out, Anchor: anchor, Start: start}, nil
}
