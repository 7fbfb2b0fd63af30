package model

import "time"

// Status values with a dedicated column in the organized view.
const (
	StatusApproved        = "approved"
	StatusDenied          = "denied"
	StatusReversed        = "reversed"
	StatusBackendReversed = "backend_reversed"
	StatusFailed          = "failed"
	StatusRefunded        = "refunded"
)

// AuthCodeApproved is the auth code joined into the organized view.
const AuthCodeApproved = "00"

// KnownStatuses lists the fixed status columns in display order.
var KnownStatuses = []string{
	StatusApproved,
	StatusDenied,
	StatusReversed,
	StatusBackendReversed,
	StatusFailed,
	StatusRefunded,
}

// IsKnownStatus reports whether status has its own organized column.
func IsKnownStatus(status string) bool {
	switch status {
	case StatusApproved, StatusDenied, StatusReversed, StatusBackendReversed, StatusFailed, StatusRefunded:
		return true
	}
	return false
}

// StatusRecord is one raw row of the transaction status source.
type StatusRecord struct {
	Timestamp time.Time
	Status    string
	Count     int64
}

// AuthRecord is one raw row of the auth-code source.
type AuthRecord struct {
	Timestamp time.Time
	AuthCode  string
	Count     int64
}

// StatusTotal is the summed count for one (timestamp, status) pair.
type StatusTotal struct {
	Timestamp time.Time `json:"ts"`
	Status    string    `json:"status"`
	Count     int64     `json:"count"`
}

// AuthTotal is the summed count for one (timestamp, auth code) pair.
type AuthTotal struct {
	Timestamp time.Time `json:"ts"`
	AuthCode  string    `json:"auth_code"`
	Count     int64     `json:"count"`
}

// OrganizedRecord is the per-timestamp row joining fixed status columns with the
// auth code "00" series.
//
// Other sums statuses outside KnownStatuses. Those counts are part of the
// overall total but have no column of their own.
type OrganizedRecord struct {
	Timestamp       time.Time `json:"ts"`
	Approved        int64     `json:"approved"`
	Denied          int64     `json:"denied"`
	Reversed        int64     `json:"reversed"`
	BackendReversed int64     `json:"backend_reversed"`
	Failed          int64     `json:"failed"`
	Refunded        int64     `json:"refunded"`
	Other           int64     `json:"other"`
	Auth00Count     *int64    `json:"auth_00_count"`
}

// Auth00 returns the auth "00" count, zero when absent.
func (r OrganizedRecord) Auth00() int64 {
	if r.Auth00Count == nil {
		return 0
	}
	return *r.Auth00Count
}

// StatusSum returns the sum of every status column, Other included.
func (r OrganizedRecord) StatusSum() int64 {
	return r.Approved + r.Denied + r.Reversed + r.BackendReversed + r.Failed + r.Refunded + r.Other
}

// Get returns the column value for a known status, or Other for anything else.
func (r OrganizedRecord) Get(status string) int64 {
	switch status {
	case StatusApproved:
		return r.Approved
	case StatusDenied:
		return r.Denied
	case StatusReversed:
		return r.Reversed
	case StatusBackendReversed:
		return r.BackendReversed
	case StatusFailed:
		return r.Failed
	case StatusRefunded:
		return r.Refunded
	default:
		return r.Other
	}
}

// AddStatus accumulates count into the column for status.
func (r *OrganizedRecord) AddStatus(status string, count int64) {
	switch status {
	case StatusApproved:
		r.Approved += count
	case StatusDenied:
		r.Denied += count
	case StatusReversed:
		r.Reversed += count
	case StatusBackendReversed:
		r.BackendReversed += count
	case StatusFailed:
		r.Failed += count
	case StatusRefunded:
		r.Refunded += count
	default:
		r.Other += count
	}
}
