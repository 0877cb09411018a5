// Command footfall counts people crossing a configured boundary in a
// detection stream. It replays a JSONL detection file through the tracking
// pipeline, persists crossings to sqlite, and serves live counts over HTTP.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/footfall-data/footfall.report/internal/alert"
	"github.com/footfall-data/footfall.report/internal/api"
	"github.com/footfall-data/footfall.report/internal/config"
	"github.com/footfall-data/footfall.report/internal/detect"
	"github.com/footfall-data/footfall.report/internal/pipeline"
	"github.com/footfall-data/footfall.report/internal/store"
)

var (
	detectionsPath = flag.String("detections", "", "Path to a JSONL detection stream (required)")
	dbPath         = flag.String("db", "footfall.db", "Path to the sqlite database; empty disables persistence")
	configPath     = flag.String("config", "", "Path to a JSON tuning file; defaults apply when empty")
	listen         = flag.String("listen", ":8080", "HTTP listen address; empty disables the API")
	reportPath     = flag.String("report", "", "Write an end-of-run JSON summary to this path")
	verbose        = flag.Bool("verbose", false, "Enable per-frame trace logging")
)

// alertInterval is how often zone occupancy is checked against thresholds.
const alertInterval = 5 * time.Second

func main() {
	flag.Parse()

	if *detectionsPath == "" {
		log.Fatal("-detections is required")
	}

	cfg := config.DefaultTuningConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	boundary, err := cfg.Boundary.Build()
	if err != nil {
		log.Fatalf("Invalid boundary: %v", err)
	}

	if *verbose {
		pipeline.SetLogWriters(os.Stderr, os.Stderr, os.Stderr)
	} else {
		pipeline.SetLogWriters(os.Stderr, os.Stderr, nil)
	}

	pipeCfg := pipeline.Config{
		MinConfidence: cfg.Confidence(),
		Cost:          cfg.CostConfig(),
		Manager:       cfg.ManagerConfig(),
		Boundary:      boundary,
	}

	var db *store.DB
	var runID string
	if *dbPath != "" {
		db, err = store.Open(*dbPath)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer db.Close()

		configJSON, err := json.Marshal(cfg)
		if err != nil {
			log.Fatalf("Failed to serialise config: %v", err)
		}
		runID, err = store.CreateRun(db.DB, *detectionsPath, string(configJSON), time.Now())
		if err != nil {
			log.Fatalf("Failed to record run: %v", err)
		}
		log.Printf("Recording run %s", runID)

		rec := store.NewRecorder(db.DB, runID)
		pipeCfg.EventSink = rec
		pipeCfg.TrackSink = rec
	}

	pipe, err := pipeline.New(pipeCfg)
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}

	src, err := detect.OpenFile(*detectionsPath)
	if err != nil {
		log.Fatalf("Failed to open detection stream: %v", err)
	}
	defer src.Close()

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	evaluator := alert.NewEvaluator()

	if *listen != "" {
		server := api.NewServer(pipe, sqlOrNil(db), evaluator)
		httpServer := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(server.ServeMux()),
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Printf("API listening on %s", *listen)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("HTTP server error: %v", err)
			}
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				log.Printf("HTTP shutdown error: %v", err)
			}
		}()
	}

	if db != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			watchZones(ctx, db, pipe, evaluator)
		}()
	}

	summary, runErr := pipe.Run(ctx, src)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Printf("Run stopped: %v", runErr)
	}

	if db != nil {
		if err := store.FinishRun(db.DB, runID, time.Now(),
			summary.FramesProcessed, summary.Totals.Entered, summary.Totals.Exited); err != nil {
			log.Printf("Failed to finalise run: %v", err)
		}
	}

	log.Printf("Processed %d frames (%d detections dropped): %d entered, %d exited, %d inside",
		summary.FramesProcessed, summary.DroppedDetections,
		summary.Totals.Entered, summary.Totals.Exited, summary.Totals.Inside())

	if *reportPath != "" {
		if err := writeReport(*reportPath, runID, summary, db); err != nil {
			log.Printf("Failed to write report: %v", err)
		}
	}

	stop()
	wg.Wait()
}

// runReport is the end-of-run summary document.
type runReport struct {
	RunID   string               `json:"run_id,omitempty"`
	Source  string               `json:"source"`
	Summary pipeline.Summary     `json:"summary"`
	Events  []*store.StoredEvent `json:"events,omitempty"`
}

// writeReport serialises the run outcome, including the persisted events
// when a database is attached.
func writeReport(path, runID string, summary pipeline.Summary, db *store.DB) error {
	report := runReport{RunID: runID, Source: *detectionsPath, Summary: summary}
	if db != nil && runID != "" {
		events, err := store.EventsForRun(db.DB, runID, 10000)
		if err != nil {
			return err
		}
		report.Events = events
	}

	raw, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

// watchZones periodically evaluates current occupancy against every
// configured zone's thresholds.
func watchZones(ctx context.Context, db *store.DB, pipe *pipeline.Pipeline, evaluator *alert.Evaluator) {
	ticker := time.NewTicker(alertInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		zones, err := store.ListZoneSettings(db.DB)
		if err != nil {
			log.Printf("Failed to load zone settings: %v", err)
			continue
		}
		inside := pipe.Snapshot().Inside
		for _, z := range zones {
			if a := evaluator.Evaluate(z, inside); a != nil {
				log.Printf("ALERT %s: zone %s at %d/%d", a.Level, a.Zone, a.Occupancy, a.Capacity)
			}
		}
	}
}

func sqlOrNil(db *store.DB) *sql.DB {
	if db == nil {
		return nil
	}
	return db.DB
}
