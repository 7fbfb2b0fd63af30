// Package aggregate turns the two typed count streams into the status table,
// the auth-code table and the organized per-timestamp view.
//
// Every function here is pure: inputs are never mutated and outputs are
// rebuilt from scratch on each call.
package aggregate

import (
	"sort"
	"time"

	"tx-dashboard/internal/model"
)

// Tables bundles the three derived tables.
type Tables struct {
	Status    []model.StatusTotal     `json:"status"`
	Auth      []model.AuthTotal       `json:"auth"`
	Organized []model.OrganizedRecord `json:"organized"`
}

// Empty reports whether either grouped source table has no rows.
func (t Tables) Empty() bool {
	return len(t.Status) == 0 || len(t.Auth) == 0
}

// MaxTimestamp returns the latest timestamp across the status and auth tables.
// ok is false when either table is empty.
func (t Tables) MaxTimestamp() (max time.Time, ok bool) {
	if t.Empty() {
		return time.Time{}, false
	}
	for _, row := range t.Status {
		if row.Timestamp.After(max) {
			max = row.Timestamp
		}
	}
	for _, row := range t.Auth {
		if row.Timestamp.After(max) {
			max = row.Timestamp
		}
	}
	return max, true
}

// Build groups both record sets and joins them into the organized view.
func Build(status []model.StatusRecord, auth []model.AuthRecord) Tables {
	statusTotals := GroupStatus(status)
	authTotals := GroupAuth(auth)
	return Tables{
		Status:    statusTotals,
		Auth:      authTotals,
		Organized: Organize(statusTotals, authTotals),
	}
}

type groupKey struct {
	ts  int64
	key string
}

// GroupStatus sums counts per (timestamp, status), ordered by timestamp then status.
func GroupStatus(records []model.StatusRecord) []model.StatusTotal {
	sums := make(map[groupKey]*model.StatusTotal, len(records))
	order := make([]groupKey, 0, len(records))
	for _, rec := range records {
		k := groupKey{ts: rec.Timestamp.UnixNano(), key: rec.Status}
		if existing, ok := sums[k]; ok {
			existing.Count += rec.Count
			continue
		}
		sums[k] = &model.StatusTotal{Timestamp: rec.Timestamp.UTC(), Status: rec.Status, Count: rec.Count}
		order = append(order, k)
	}
	out := make([]model.StatusTotal, 0, len(order))
	for _, k := range order {
		out = append(out, *sums[k])
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].Status < out[j].Status
	})
	return out
}

// GroupAuth sums counts per (timestamp, auth code), ordered by timestamp then code.
func GroupAuth(records []model.AuthRecord) []model.AuthTotal {
	sums := make(map[groupKey]*model.AuthTotal, len(records))
	order := make([]groupKey, 0, len(records))
	for _, rec := range records {
		k := groupKey{ts: rec.Timestamp.UnixNano(), key: rec.AuthCode}
		if existing, ok := sums[k]; ok {
			existing.Count += rec.Count
			continue
		}
		sums[k] = &model.AuthTotal{Timestamp: rec.Timestamp.UTC(), AuthCode: rec.AuthCode, Count: rec.Count}
		order = append(order, k)
	}
	out := make([]model.AuthTotal, 0, len(order))
	for _, k := range order {
		out = append(out, *sums[k])
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].AuthCode < out[j].AuthCode
	})
	return out
}

// Auth00Series extracts the rows of auth code "00" from a grouped auth table.
func Auth00Series(auth []model.AuthTotal) []model.AuthTotal {
	series := make([]model.AuthTotal, 0, len(auth))
	for _, row := range auth {
		if row.AuthCode == model.AuthCodeApproved {
			series = append(series, row)
		}
	}
	return series
}

// Organize pivots status totals per timestamp and joins the auth "00" series on
// exact timestamp equality. Timestamps present on only one side still produce a
// row; the missing side reads as zero (statuses) or absent (auth_00_count).
func Organize(status []model.StatusTotal, auth []model.AuthTotal) []model.OrganizedRecord {
	rows := make(map[int64]*model.OrganizedRecord)
	row := func(ts time.Time) *model.OrganizedRecord {
		k := ts.UnixNano()
		if r, ok := rows[k]; ok {
			return r
		}
		r := &model.OrganizedRecord{Timestamp: ts.UTC()}
		rows[k] = r
		return r
	}

	for _, total := range status {
		row(total.Timestamp).AddStatus(total.Status, total.Count)
	}

	for _, total := range Auth00Series(auth) {
		r := row(total.Timestamp)
		sum := total.Count
		if r.Auth00Count != nil {
			sum += *r.Auth00Count
		}
		r.Auth00Count = &sum
	}

	out := make([]model.OrganizedRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}
