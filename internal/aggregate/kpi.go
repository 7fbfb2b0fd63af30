package aggregate

import (
	"github.com/shopspring/decimal"

	"tx-dashboard/internal/model"
)

var hundred = decimal.NewFromInt(100)

// Summary holds the scalar KPIs of a table set.
//
// TotalCount sums every status, including those outside the fixed organized
// columns, so it can exceed the sum of the named organized columns.
type Summary struct {
	TotalCount    int64           `json:"total_count"`
	ApprovedTotal int64           `json:"approved_total"`
	Auth00Total   int64           `json:"auth_00_total"`
	ApprovalRate  decimal.Decimal `json:"approval_rate_pct"`
}

// Summarize computes the KPIs. ApprovalRate is a percentage and is zero when
// TotalCount is zero.
func Summarize(t Tables) Summary {
	var s Summary
	for _, row := range t.Status {
		s.TotalCount += row.Count
		if row.Status == model.StatusApproved {
			s.ApprovedTotal += row.Count
		}
	}
	for _, row := range t.Auth {
		if row.AuthCode == model.AuthCodeApproved {
			s.Auth00Total += row.Count
		}
	}
	s.ApprovalRate = ApprovalRate(s.ApprovedTotal, s.TotalCount)
	return s
}

// ApprovalRate returns approved/total as a percentage, zero when total is zero.
func ApprovalRate(approved, total int64) decimal.Decimal {
	if total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(approved).Mul(hundred).Div(decimal.NewFromInt(total))
}
