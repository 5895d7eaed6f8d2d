package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"chain-alerts/internal/storage"
)

// Export renders the alert history as CSV and/or a PNG volume chart.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-30 * 24 * time.Hour)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	alerts, err := store.ListAlertsBetween(ctx, from, to)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		a.Logger.Info().Msg("no alerts found for export window")
		return nil
	}

	downsampled := downsampleAlerts(alerts, opts.MaxPoints)
	a.Logger.Info().Int("total", len(alerts)).Int("exported", len(downsampled)).Msg("exporting alerts")

	if opts.CSVPath != "" {
		if err := writeAlertsCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeAlertsPNG(opts.PNGPath, alerts); err != nil {
			return err
		}
	}

	return nil
}

func downsampleAlerts(alerts []storage.AlertRecord, max int) []storage.AlertRecord {
	if max <= 0 || len(alerts) <= max {
		return alerts
	}

	result := make([]storage.AlertRecord, 0, max)
	step := float64(len(alerts)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(alerts) {
			idx = len(alerts) - 1
		}
		result = append(result, alerts[idx])
	}
	return result
}

func writeAlertsCSV(path string, alerts []storage.AlertRecord) error {
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

	header := []string{"created_at", "kind", "sub_label", "tx_hash", "block_number", "amount", "channel", "delivered"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, alert := range alerts {
		delivered := "false"
		if alert.Delivered {
			delivered = "true"
		}
		record := []string{
			alert.CreatedAt.Format(time.RFC3339),
			alert.Kind,
			alert.SubLabel,
			alert.TxHash,
			strconv.FormatInt(alert.Block, 10),
			alert.Amount.String(),
			alert.Channel,
			delivered,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

// writeAlertsPNG draws one time series per alert kind: alerts per day.
func writeAlertsPNG(path string, alerts []storage.AlertRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	type dayKey struct {
		day  time.Time
		kind string
	}

	counts := make(map[dayKey]int)
	kinds := make(map[string]struct{})
	minDay := alerts[0].CreatedAt.UTC().Truncate(24 * time.Hour)
	maxDay := minDay
	for _, alert := range alerts {
		day := alert.CreatedAt.UTC().Truncate(24 * time.Hour)
		counts[dayKey{day: day, kind: alert.Kind}]++
		kinds[alert.Kind] = struct{}{}
		if day.Before(minDay) {
			minDay = day
		}
		if day.After(maxDay) {
			maxDay = day
		}
	}

	sortedKinds := make([]string, 0, len(kinds))
	for kind := range kinds {
		sortedKinds = append(sortedKinds, kind)
	}
	sort.Strings(sortedKinds)

	var days []time.Time
	for day := minDay; !day.After(maxDay); day = day.Add(24 * time.Hour) {
		days = append(days, day)
	}

	countFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.0f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Alerts per day",
			ValueFormatter: countFormatter,
		},
	}

	for _, kind := range sortedKinds {
		values := make([]float64, len(days))
		for i, day := range days {
			values[i] = float64(counts[dayKey{day: day, kind: kind}])
		}
		graph.Series = append(graph.Series, chart.TimeSeries{
			Name:    kind,
			XValues: days,
			YValues: values,
		})
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
