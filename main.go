package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/suporte-sac/zendesk-etl/internal/archive"
	"github.com/suporte-sac/zendesk-etl/internal/config"
	"github.com/suporte-sac/zendesk-etl/internal/export"
	"github.com/suporte-sac/zendesk-etl/internal/ingestion"
	"github.com/suporte-sac/zendesk-etl/internal/models"
	"github.com/suporte-sac/zendesk-etl/internal/queue"
	"github.com/suporte-sac/zendesk-etl/internal/storage"
	"github.com/suporte-sac/zendesk-etl/internal/zendesk"
)

func main() {
	os.Exit(run())
}

func run() int {
	godotenv.Load()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	var (
		startFlag    = flag.String("start", "", "range start date YYYY-MM-DD (inclusive)")
		endFlag      = flag.String("end", "", "range end date YYYY-MM-DD (exclusive); defaults to start+1 day")
		daysFlag     = flag.Int("days", 1, "process the last N full days when -start is not set")
		modeFlag     = flag.String("mode", "persist", "destination mode: persist or export")
		entityFlag   = flag.String("entity", "tickets", "entity to process: tickets or activities")
		earliestFlag = flag.Bool("earliest", false, "print the creation time of the first ticket and exit")
		failedFlag   = flag.Bool("failed", false, "list dead-lettered windows and exit")
	)
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Println("Failed to load configuration:", err)
		return 1
	}

	client := zendesk.NewClient(cfg.Zendesk)
	ctx := context.Background()

	if *earliestFlag {
		created, err := client.EarliestTicket(ctx)
		if err != nil {
			log.Println("Failed to find first ticket:", err)
			return 1
		}
		fmt.Println(created.Format(time.RFC3339))
		return 0
	}

	if *failedFlag {
		if cfg.Storage.RedisURL == "" {
			log.Println("REDIS_URL is required to list failed windows")
			return 1
		}
		dead, err := queue.NewDeadLetter(ctx, cfg.Storage.RedisURL)
		if err != nil {
			log.Println("Failed to connect to dead-letter queue:", err)
			return 1
		}
		defer dead.Close()
		entries, err := dead.PendingWindows(ctx)
		if err != nil {
			log.Println("Failed to list failed windows:", err)
			return 1
		}
		for _, e := range entries {
			fmt.Println(e)
		}
		return 0
	}

	mode := ingestion.Mode(*modeFlag)
	if mode != ingestion.ModePersist && mode != ingestion.ModeExport {
		log.Printf("Unknown mode %q (want persist or export)", *modeFlag)
		return 1
	}

	deps := ingestion.Deps{Fetcher: client}

	if mode == ingestion.ModePersist {
		store, err := storage.NewStore(cfg.Storage)
		if err != nil {
			log.Println("Failed to initialize storage:", err)
			return 1
		}
		defer store.Close()
		deps.Store = store
		deps.Loader = storage.NewLoader(store, cfg.Pipeline, cfg.Storage.MaxColumnWidth)

		status, err := storage.NewStatusStore(cfg.Storage)
		if err != nil {
			slog.Warn("run-status store unavailable, continuing without it", "error", err)
		} else if status != nil {
			defer status.Close()
			deps.Status = status
		}
	} else {
		deps.Exporter = export.NewNDJSONWriter(cfg.Pipeline.ExportDir)
	}

	if cfg.Storage.MongoDBURI != "" {
		arch, err := archive.NewMongoArchive(ctx, cfg.Storage)
		if err != nil {
			slog.Warn("raw archive unavailable, continuing without it", "error", err)
		} else {
			defer arch.Close(ctx)
			deps.Archive = arch
		}
	}

	if cfg.Storage.RedisURL != "" {
		dead, err := queue.NewDeadLetter(ctx, cfg.Storage.RedisURL)
		if err != nil {
			slog.Warn("dead-letter queue unavailable, continuing without it", "error", err)
		} else {
			defer dead.Close()
			deps.DeadLetter = dead
		}
	}

	service := ingestion.NewService(cfg, deps)

	var report *models.RunReport
	switch *entityFlag {
	case "activities":
		report = service.RunActivities(ctx, mode)
	case "tickets":
		start, end, err := resolveRange(*startFlag, *endFlag, *daysFlag)
		if err != nil {
			log.Println("Invalid date range:", err)
			return 1
		}
		report = service.Run(ctx, start, end, mode)
	default:
		log.Printf("Unknown entity %q (want tickets or activities)", *entityFlag)
		return 1
	}

	if report.FatalErr != nil {
		slog.Error("run aborted", "error", report.FatalErr)
		return 1
	}
	if report.DedupeErr != nil {
		slog.Error("run completed with dedupe failure", "error", report.DedupeErr)
		return 1
	}
	return 0
}

// resolveRange turns the flag combination into an inclusive start and
// exclusive end. With no -start, the last -days full days ending today are
// processed (the default reproduces the daily D-1 job).
func resolveRange(startStr, endStr string, days int) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	if startStr == "" {
		if endStr != "" {
			return time.Time{}, time.Time{}, fmt.Errorf("-end requires -start")
		}
		if days < 1 {
			return time.Time{}, time.Time{}, fmt.Errorf("-days must be at least 1")
		}
		return today.AddDate(0, 0, -days), today, nil
	}

	start, err := time.Parse("2006-01-02", startStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse -start: %w", err)
	}
	if endStr == "" {
		return start, start.AddDate(0, 0, 1), nil
	}
	end, err := time.Parse("2006-01-02", endStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse -end: %w", err)
	}
	return start, end, nil
}
