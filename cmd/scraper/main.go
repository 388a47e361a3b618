package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/matpris/backend/config"
	"github.com/matpris/backend/internal/delivery/status"
	"github.com/matpris/backend/internal/domain"
	"github.com/matpris/backend/internal/infrastructure/browser"
	"github.com/matpris/backend/internal/infrastructure/oracle"
	"github.com/matpris/backend/internal/infrastructure/postgres"
	"github.com/matpris/backend/internal/infrastructure/stores"
	"github.com/matpris/backend/internal/usecase"
)

func main() {
	os.Exit(run())
}

// run executes one batch and returns the process exit code: 0 when the
// batch completed with zero hard errors (no-matches are fine), 1 otherwise.
func run() int {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		return 1
	}

	log.Printf("Starting matpris scraper v1.0.0")
	log.Printf("Environment: %s", cfg.Batch.Environment)
	log.Printf("Batch: size=%d per-store-limit=%d cooldown=%dd no-match-recheck=%dd",
		cfg.Batch.Size, cfg.Batch.PerStoreLimit, cfg.Batch.CooldownDays, cfg.Batch.NoMatchRecheckDays)

	// Cancellation is run-level only: a partially scraped ingredient is
	// simply retried on the next scheduled run.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Single database session for the whole run, closed on every exit path.
	conn, err := postgres.Connect(ctx, cfg.Database.DSN)
	if err != nil {
		log.Printf("[DB] %v", err)
		return 1
	}
	defer conn.Close(context.Background())

	// Single shared browser session, likewise.
	session, err := browser.NewSession(browser.Config{
		Headless:    cfg.Browser.Headless,
		NavTimeout:  cfg.Browser.NavTimeout,
		SettleDelay: cfg.Browser.SettleDelay,
	})
	if err != nil {
		log.Printf("[BROWSER] %v", err)
		return 1
	}
	defer session.Close()

	debug := cfg.Batch.Environment == "development"
	normalizer := usecase.NewPriceNormalizer(debug)
	aggregator := usecase.NewCandidateAggregator(postgres.NewCandidateRepo(conn), normalizer)

	batch := usecase.NewBatchService(
		postgres.NewIngredientRepo(conn),
		postgres.NewObservationRepo(conn),
		[]domain.StoreSource{stores.NewOda(session), stores.NewMeny(session)},
		usecase.NewRelevanceFilter(debug),
		aggregator,
		oracle.NewClient(cfg.Oracle.APIKey, cfg.Oracle.BaseURL, cfg.Oracle.Model),
		usecase.BatchServiceConfig{
			BatchSize:      cfg.Batch.Size,
			PerStoreLimit:  cfg.Batch.PerStoreLimit,
			Cooldown:       cfg.Batch.Cooldown(),
			NoMatchRecheck: cfg.Batch.NoMatchRecheck(),
		},
	)

	if cfg.Status.Addr != "" {
		statusSrv := status.Start(cfg.Status.Addr, cfg.Batch.Environment, batch)
		defer statusSrv.Stop()
	}

	summary, err := batch.Run(ctx)
	if err != nil {
		log.Printf("[BATCH] Run failed: %v", err)
		return 1
	}

	log.Printf("[BATCH] Done: processed=%d matched=%d no_match=%d errors=%d duration=%.1fs",
		summary.Processed, summary.Matched, summary.NoMatch, summary.Errors, summary.Duration.Seconds())
	printJSONSummary(summary)

	if summary.Failed() {
		return 1
	}
	return 0
}

// printJSONSummary emits one machine-readable summary line for log scraping
func printJSONSummary(summary domain.RunSummary) {
	payload := struct {
		Event string `json:"event"`
		domain.RunSummary
		DurationSec float64 `json:"duration_sec"`
	}{
		Event:       "run_summary",
		RunSummary:  summary,
		DurationSec: summary.Duration.Seconds(),
	}
	if b, err := json.Marshal(payload); err == nil {
		log.Println(string(b))
	}
}

func init() {
	// Set log flags for better debugging
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.SetOutput(os.Stdout)
}
