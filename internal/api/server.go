// Package api serves the counting engine's HTTP surface: live counts,
// track state, run history, zone administration, and chart rendering.
package api

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/footfall-data/footfall.report/internal/alert"
	"github.com/footfall-data/footfall.report/internal/pipeline"
	"github.com/footfall-data/footfall.report/internal/store"
	"github.com/footfall-data/footfall.report/internal/track"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	pipe   *pipeline.Pipeline
	db     *sql.DB
	alerts *alert.Evaluator
}

// NewServer wires the API against a running pipeline, the database, and the
// alert evaluator. db may be nil when persistence is disabled; the
// run-backed endpoints then return 503.
func NewServer(pipe *pipeline.Pipeline, db *sql.DB, alerts *alert.Evaluator) *Server {
	return &Server{
		pipe:   pipe,
		db:     db,
		alerts: alerts,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/live", s.showLive)
	mux.HandleFunc("/api/tracks", s.listTracks)
	mux.HandleFunc("/api/runs", s.listRuns)
	mux.HandleFunc("/api/events", s.listEvents)
	mux.HandleFunc("/api/zones", s.handleZones)
	mux.HandleFunc("/api/zones/history", s.showZoneHistory)
	mux.HandleFunc("/api/alerts", s.listAlerts)
	mux.HandleFunc("/api/charts/counts", s.showCountsChart)
	return mux
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// requireDB guards the persistence-backed endpoints.
func (s *Server) requireDB(w http.ResponseWriter) bool {
	if s.db == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "persistence disabled")
		return false
	}
	return true
}

func (s *Server) showLive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.writeJSON(w, s.pipe.Snapshot())
}

// trackView is the wire shape of one live track.
type trackView struct {
	ID         int64       `json:"id"`
	State      track.State `json:"state"`
	X          float64     `json:"x"`
	Y          float64     `json:"y"`
	Width      float64     `json:"width"`
	Height     float64     `json:"height"`
	VelocityX  float64     `json:"vx"`
	VelocityY  float64     `json:"vy"`
	Age        int64       `json:"age"`
	Hits       int         `json:"hits"`
	Misses     int         `json:"misses"`
	Confidence float64     `json:"confidence"`
}

func (s *Server) listTracks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	live := s.pipe.Manager().Live()
	out := make([]trackView, 0, len(live))
	for _, tr := range live {
		box := tr.Box()
		vx, vy := tr.Velocity()
		out = append(out, trackView{
			ID:         tr.ID,
			State:      tr.State,
			X:          box.X,
			Y:          box.Y,
			Width:      box.Width,
			Height:     box.Height,
			VelocityX:  vx,
			VelocityY:  vy,
			Age:        int64(tr.Age),
			Hits:       tr.Hits,
			Misses:     tr.Misses,
			Confidence: tr.Confidence,
		})
	}
	s.writeJSON(w, out)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !s.requireDB(w) {
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	runs, err := store.ListRuns(s.db, limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}
	s.writeJSON(w, runs)
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
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
	limit := 500
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	events, err := store.EventsForRun(s.db, runID, limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to query events")
		return
	}
	s.writeJSON(w, events)
}

func (s *Server) handleZones(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		zones, err := store.ListZoneSettings(s.db)
		if err != nil {
			s.writeJSONError(w, http.StatusInternalServerError, "Failed to list zones")
			return
		}
		s.writeJSON(w, zones)
	case http.MethodPut, http.MethodPost:
		var z store.ZoneSettings
		if err := json.NewDecoder(r.Body).Decode(&z); err != nil {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid zone settings body")
			return
		}
		if err := store.UpsertZoneSettings(s.db, &z, time.Now()); err != nil {
			s.writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		saved, err := store.GetZoneSettings(s.db, z.Zone)
		if err != nil {
			s.writeJSONError(w, http.StatusInternalServerError, "Failed to reload zone")
			return
		}
		s.writeJSON(w, saved)
	default:
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) showZoneHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !s.requireDB(w) {
		return
	}

	zone := r.URL.Query().Get("zone")
	if zone == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'zone' parameter")
		return
	}
	hist, err := store.SettingsHistory(s.db, zone, 200)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to query history")
		return
	}
	s.writeJSON(w, hist)
}

func (s *Server) listAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.alerts == nil {
		s.writeJSON(w, []alert.Alert{})
		return
	}
	s.writeJSON(w, s.alerts.Recent())
}
