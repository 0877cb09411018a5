package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/footfall-data/footfall.report/internal/store"
)

// showCountsChart renders an HTML line chart of crossings per interval for
// one run using go-echarts.
// Query params:
//   - run (required)
//   - interval_seconds (optional; default 60)
func (s *Server) showCountsChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !s.requireDB(w) {
		return
	}

	runID := r.URL.Query().Get("run")
	if runID == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'run' parameter")
		return
	}

	intervalSeconds := 60
	if iv := r.URL.Query().Get("interval_seconds"); iv != "" {
		parsed, err := strconv.Atoi(iv)
		if err != nil || parsed < 1 || parsed > 86400 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'interval_seconds' parameter")
			return
		}
		intervalSeconds = parsed
	}

	buckets, err := store.CountsByInterval(s.db, runID, time.Duration(intervalSeconds)*time.Second)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to query interval counts")
		return
	}
	if len(buckets) == 0 {
		s.writeJSONError(w, http.StatusNotFound, "no events for run")
		return
	}

	labels := make([]string, 0, len(buckets))
	entered := make([]opts.LineData, 0, len(buckets))
	exited := make([]opts.LineData, 0, len(buckets))
	for _, b := range buckets {
		labels = append(labels, b.Start.Format("15:04:05"))
		entered = append(entered, opts.LineData{Value: b.Entered})
		exited = append(exited, opts.LineData{Value: b.Exited})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Crossings", Width: "1100px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Crossings per interval",
			Subtitle: fmt.Sprintf("run=%s interval=%ds", runID, intervalSeconds),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Time"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Crossings"}),
	)
	line.SetXAxis(labels)
	line.AddSeries("entered", entered)
	line.AddSeries("exited", exited)
	line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
