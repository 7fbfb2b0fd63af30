package aggregate

import (
	"sort"
	"time"

	"tx-dashboard/internal/model"
)

// StatusMatrix is a dense timestamp x status grid; missing pairs read as zero.
type StatusMatrix struct {
	Timestamps []time.Time `json:"timestamps"`
	Statuses   []string    `json:"statuses"`
	// Counts[i][j] is the count of Statuses[j] at Timestamps[i].
	Counts [][]int64 `json:"counts"`
}

// Series returns the column for status, nil when the status never occurs.
func (m StatusMatrix) Series(status string) []int64 {
	for j, s := range m.Statuses {
		if s != status {
			continue
		}
		col := make([]int64, len(m.Timestamps))
		for i := range m.Timestamps {
			col[i] = m.Counts[i][j]
		}
		return col
	}
	return nil
}

// Pivot densifies a grouped status table for charting. Statuses are ordered
// with the known ones first, then the rest alphabetically.
func Pivot(status []model.StatusTotal) StatusMatrix {
	tsIndex := make(map[int64]int)
	statusSet := make(map[string]struct{})
	var m StatusMatrix
	for _, row := range status {
		k := row.Timestamp.UnixNano()
		if _, ok := tsIndex[k]; !ok {
			tsIndex[k] = len(m.Timestamps)
			m.Timestamps = append(m.Timestamps, row.Timestamp)
		}
		statusSet[row.Status] = struct{}{}
	}
	sort.Slice(m.Timestamps, func(i, j int) bool { return m.Timestamps[i].Before(m.Timestamps[j]) })
	for i, ts := range m.Timestamps {
		tsIndex[ts.UnixNano()] = i
	}

	for _, known := range model.KnownStatuses {
		if _, ok := statusSet[known]; ok {
			m.Statuses = append(m.Statuses, known)
			delete(statusSet, known)
		}
	}
	extra := make([]string, 0, len(statusSet))
	for s := range statusSet {
		extra = append(extra, s)
	}
	sort.Strings(extra)
	m.Statuses = append(m.Statuses, extra...)

	statusIndex := make(map[string]int, len(m.Statuses))
	for j, s := range m.Statuses {
		statusIndex[s] = j
	}

	m.Counts = make([][]int64, len(m.Timestamps))
	for i := range m.Counts {
		m.Counts[i] = make([]int64, len(m.Statuses))
	}
	for _, row := range status {
		m.Counts[tsIndex[row.Timestamp.UnixNano()]][statusIndex[row.Status]] += row.Count
	}
	return m
}

// AuthDistribution is the per-code breakdown at one timestamp.
type AuthDistribution struct {
	Timestamp time.Time         `json:"ts"`
	Codes     []model.AuthTotal `json:"codes"`
}

// LatestAuthDistribution returns the auth totals at the latest auth timestamp,
// ordered by count descending and then code. ok is false for an empty table.
func LatestAuthDistribution(auth []model.AuthTotal) (dist AuthDistribution, ok bool) {
	if len(auth) == 0 {
		return AuthDistribution{}, false
	}
	latest := auth[0].Timestamp
	for _, row := range auth {
		if row.Timestamp.After(latest) {
			latest = row.Timestamp
		}
	}

	byCode := make(map[string]int64)
	for _, row := range auth {
		if row.Timestamp.Equal(latest) {
			byCode[row.AuthCode] += row.Count
		}
	}
	dist.Timestamp = latest
	for code, count := range byCode {
		dist.Codes = append(dist.Codes, model.AuthTotal{Timestamp: latest, AuthCode: code, Count: count})
	}
	sort.Slice(dist.Codes, func(i, j int) bool {
		if dist.Codes[i].Count != dist.Codes[j].Count {
			return dist.Codes[i].Count > dist.Codes[j].Count
		}
		return dist.Codes[i].AuthCode < dist.Codes[j].AuthCode
	})
	return dist, true
}

// Tail returns the last n organized rows. n <= 0 returns all rows.
func Tail(rows []model.OrganizedRecord, n int) []model.OrganizedRecord {
	if n <= 0 || len(rows) <= n {
		return rows
	}
	return rows[len(rows)-n:]
}
