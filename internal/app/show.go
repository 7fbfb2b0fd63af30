package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"tx-dashboard/internal/aggregate"
	"tx-dashboard/internal/model"
	"tx-dashboard/internal/pipeline"
	"tx-dashboard/internal/source"
)

// Show runs one refresh cycle and prints the dashboard.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	snap, err := a.refreshOnce(ctx, opts.Window)
	if err != nil {
		return err
	}

	if opts.JSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(snap)
	}

	rows := opts.Rows
	if rows <= 0 {
		rows = a.Config.Display.TableRows
	}
	renderDashboard(out, snap, rows)
	return nil
}

func renderDashboard(out io.Writer, snap pipeline.Snapshot, rows int) {
	if out == nil {
		out = os.Stdout
	}

	fmt.Fprintf(out, "== Transactions dashboard (window %s, generated %s) ==\n", snap.Window, snap.GeneratedAt.UTC().Format(time.RFC3339))
	if snap.NoData {
		fmt.Fprintln(out, "no data available")
		return
	}

	fmt.Fprintf(out, "Latest minute: %s  Window start: %s\n", snap.Anchor.UTC().Format(time.RFC3339), formatStart(snap.Start))
	fmt.Fprintf(out, "Total: %d  Approved: %d  Auth 00: %d  Approval rate: %s%%\n",
		snap.Summary.TotalCount,
		snap.Summary.ApprovedTotal,
		snap.Summary.Auth00Total,
		snap.Summary.ApprovalRate.StringFixed(2),
	)
	if snap.Skipped > 0 {
		fmt.Fprintf(out, "Skipped rows: %d\n", snap.Skipped)
	}

	if dist, ok := aggregate.LatestAuthDistribution(snap.Tables.Auth); ok {
		fmt.Fprintf(out, "\nAuth codes at %s\n", dist.Timestamp.UTC().Format(time.RFC3339))
		writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(writer, "Code\tCount")
		for _, code := range dist.Codes {
			fmt.Fprintf(writer, "%s\t%d\n", code.AuthCode, code.Count)
		}
		writer.Flush()
	}

	fmt.Fprintln(out)
	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\t"+strings.Join(model.KnownStatuses, "\t")+"\tother\tauth_00")
	for _, row := range aggregate.Tail(snap.Tables.Organized, rows) {
		fmt.Fprintf(writer, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			row.Timestamp.UTC().Format(time.RFC3339),
			row.Approved,
			row.Denied,
			row.Reversed,
			row.BackendReversed,
			row.Failed,
			row.Refunded,
			row.Other,
			formatAuth00(row),
		)
	}
	writer.Flush()
}

func renderFailure(out io.Writer, err error) {
	if out == nil {
		out = os.Stdout
	}
	kind := source.KindOf(err)
	if kind == "" {
		kind = "Error"
	}
	fmt.Fprintf(out, "refresh failed [%s]: %s\n", kind, sanitizeInline(err.Error()))
}

func formatStart(start time.Time) string {
	if start.IsZero() {
		return "unbounded"
	}
	return start.UTC().Format(time.RFC3339)
}

func formatAuth00(row model.OrganizedRecord) string {
	if row.Auth00Count == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *row.Auth00Count)
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
