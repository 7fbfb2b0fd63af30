package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"tx-dashboard/internal/aggregate"
	"tx-dashboard/internal/model"
)

// Export renders the windowed organized table as CSV and/or PNG charts.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" && opts.ComparePNGPath == "" {
		return errors.New("at least one of --csv, --png or --compare-png must be provided")
	}

	maxPoints := a.Config.ResolveMaxPoints(opts.MaxPoints)

	snap, err := a.refreshOnce(ctx, opts.Window)
	if err != nil {
		return err
	}
	if snap.NoData {
		a.Logger.Info().Msg("no data found for export window")
		return nil
	}

	rows := downsampleRows(snap.Tables.Organized, maxPoints)
	a.Logger.Info().Int("total", len(snap.Tables.Organized)).Int("exported", len(rows)).Str("window", snap.Window).Msg("exporting organized rows")

	if opts.CSVPath != "" {
		if err := writeOrganizedCSV(opts.CSVPath, rows); err != nil {
			return err
		}
	}

	chartPoints := chartMaxPoints(maxPoints)
	if opts.PNGPath != "" {
		matrix := aggregate.Pivot(snap.Tables.Status)
		if err := writeStatusPNG(opts.PNGPath, matrix, chartPoints); err != nil {
			return err
		}
	}

	if opts.ComparePNGPath != "" {
		if err := writeComparePNG(opts.ComparePNGPath, downsampleRows(snap.Tables.Organized, chartPoints)); err != nil {
			return err
		}
	}

	return nil
}

// chartMaxPoints keeps at least two samples; go-chart cannot draw a zero x-range.
func chartMaxPoints(max int) int {
	if max > 0 && max < 2 {
		return 2
	}
	return max
}

func downsampleRows(rows []model.OrganizedRecord, max int) []model.OrganizedRecord {
	if max <= 0 || len(rows) <= max {
		return rows
	}
	idx := sampleIndexes(len(rows), max)
	result := make([]model.OrganizedRecord, len(idx))
	for i, pos := range idx {
		result[i] = rows[pos]
	}
	return result
}

func writeOrganizedCSV(path string, rows []model.OrganizedRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := append([]string{"timestamp"}, model.KnownStatuses...)
	header = append(header, "other", "auth_00_count")
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, row := range rows {
		auth00 := ""
		if row.Auth00Count != nil {
			auth00 = strconv.FormatInt(*row.Auth00Count, 10)
		}
		record := []string{row.Timestamp.UTC().Format(time.RFC3339)}
		for _, status := range model.KnownStatuses {
			record = append(record, strconv.FormatInt(row.Get(status), 10))
		}
		record = append(record, strconv.FormatInt(row.Other, 10), auth00)
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeStatusPNG(path string, matrix aggregate.StatusMatrix, maxPoints int) error {
	if len(matrix.Timestamps) < 2 {
		return fmt.Errorf("status chart needs at least two timestamps, got %d", len(matrix.Timestamps))
	}

	idx := sampleIndexes(len(matrix.Timestamps), maxPoints)
	x := make([]time.Time, len(idx))
	for i, pos := range idx {
		x[i] = matrix.Timestamps[pos]
	}

	series := make([]chart.Series, 0, len(matrix.Statuses))
	for _, status := range matrix.Statuses {
		column := matrix.Series(status)
		y := make([]float64, len(idx))
		for i, pos := range idx {
			y[i] = float64(column[pos])
		}
		series = append(series, chart.TimeSeries{Name: status, XValues: x, YValues: y})
	}

	return renderChart(path, "Transactions", series)
}

func writeComparePNG(path string, rows []model.OrganizedRecord) error {
	if len(rows) < 2 {
		return fmt.Errorf("comparison chart needs at least two timestamps, got %d", len(rows))
	}

	x := make([]time.Time, len(rows))
	approved := make([]float64, len(rows))
	auth00 := make([]float64, len(rows))
	for i, row := range rows {
		x[i] = row.Timestamp
		approved[i] = float64(row.Approved)
		auth00[i] = float64(row.Auth00())
	}

	return renderChart(path, "Count", []chart.Series{
		chart.TimeSeries{Name: "Approved", XValues: x, YValues: approved},
		chart.TimeSeries{Name: "Auth 00", XValues: x, YValues: auth00},
	})
}

func renderChart(path, yName string, series []chart.Series) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	countFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.0f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeMinuteValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           yName,
			ValueFormatter: countFormatter,
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

// sampleIndexes picks at most max evenly spaced positions out of n.
func sampleIndexes(n, max int) []int {
	if max <= 0 || n <= max {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	if max == 1 {
		return []int{n - 1}
	}
	idx := make([]int, 0, max)
	step := float64(n-1) / float64(max-1)
	for i := 0; i < max; i++ {
		pos := int(math.Round(step * float64(i)))
		if pos >= n {
			pos = n - 1
		}
		idx = append(idx, pos)
	}
	return idx
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
