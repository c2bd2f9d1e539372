package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/suporte-sac/zendesk-etl/internal/archive"
	"github.com/suporte-sac/zendesk-etl/internal/config"
	"github.com/suporte-sac/zendesk-etl/internal/export"
	"github.com/suporte-sac/zendesk-etl/internal/models"
	"github.com/suporte-sac/zendesk-etl/internal/normalize"
	"github.com/suporte-sac/zendesk-etl/internal/queue"
	"github.com/suporte-sac/zendesk-etl/internal/storage"
)

// Mode selects where normalized rows go.
type Mode string

const (
	ModePersist Mode = "persist"
	ModeExport  Mode = "export"
)

// Fetcher abstracts the remote source.
type Fetcher interface {
	SearchTickets(ctx context.Context, w models.Window) ([]models.RawRecord, error)
	FetchActivities(ctx context.Context) ([]models.RawRecord, error)
}

// Deps bundles the orchestrator's collaborators. Fetcher is always required;
// Store and Loader are required for persist mode, Exporter for export mode.
// Archive, DeadLetter and Status are optional.
type Deps struct {
	Fetcher    Fetcher
	Store      storage.Store
	Loader     *storage.Loader
	Exporter   *export.NDJSONWriter
	Archive    archive.Archive
	DeadLetter *queue.DeadLetter
	Status     storage.StatusStore
}

// Service drives the pipeline: plan windows, run fetch→normalize→load per
// window on a bounded worker pool, then deduplicate once per table. Window
// failures never block sibling windows; the run always completes with a
// report.
type Service struct {
	deps    Deps
	workers int

	tickets    *normalize.Normalizer
	activities *normalize.Normalizer
}

// NewService creates the orchestrator.
func NewService(cfg *config.Config, deps Deps) *Service {
	workers := cfg.Pipeline.Workers
	if workers < 1 {
		workers = 1
	}
	return &Service{
		deps:       deps,
		workers:    workers,
		tickets:    normalize.New(normalize.TicketSchema(cfg.Storage.TicketsTable)),
		activities: normalize.New(normalize.ActivitySchema(cfg.Storage.ActivitiesTable)),
	}
}

// Run executes the windowed ticket pipeline over [start, end).
func (s *Service) Run(ctx context.Context, start, end time.Time, mode Mode) *models.RunReport {
	report := s.newReport("tickets", mode)
	defer s.finish(ctx, report)

	windows, err := PlanWindows(start, end)
	if err != nil {
		report.State = models.StateFailed
		report.FatalErr = err
		return report
	}
	report.State = models.StatePlanned
	report.Windows = make([]models.WindowReport, len(windows))

	slog.Info("run planned",
		"run_id", report.RunID,
		"entity", report.Entity,
		"mode", mode,
		"windows", len(windows),
		"workers", s.workers)

	if len(windows) == 0 {
		report.State = models.StateDone
		return report
	}

	// Each worker owns one window end to end so rate-limited page requests
	// never interleave across windows. Windows fuse fetch, normalize and
	// load, so the aggregate state advances with the furthest window.
	report.State = models.StateFetching
	var stateMu sync.Mutex
	advance := func(st models.RunState) {
		stateMu.Lock()
		report.State = laterState(report.State, st)
		stateMu.Unlock()
	}
	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	for i, w := range windows {
		wg.Add(1)
		go func(i int, w models.Window) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			report.Windows[i] = s.processWindow(ctx, s.tickets, w, mode, advance)
		}(i, w)
	}
	wg.Wait()

	s.dedupe(ctx, report, s.tickets.Schema(), mode)
	return report
}

// RunActivities executes the activity-feed pipeline. The feed is not
// windowed: the endpoint retains only a trailing ~30 days and takes no date
// predicate, so it runs as a single unit of work.
func (s *Service) RunActivities(ctx context.Context, mode Mode) *models.RunReport {
	report := s.newReport("activities", mode)
	defer s.finish(ctx, report)

	now := time.Now().UTC()
	feed := models.Window{Start: now.AddDate(0, 0, -30), End: now}

	slog.Info("run planned",
		"run_id", report.RunID,
		"entity", report.Entity,
		"mode", mode,
		"windows", 1)

	report.State = models.StateFetching
	advance := func(st models.RunState) {
		report.State = laterState(report.State, st)
	}
	report.Windows = []models.WindowReport{s.processFeed(ctx, feed, mode, advance)}

	s.dedupe(ctx, report, s.activities.Schema(), mode)
	return report
}

// processWindow is one worker's unit of work: fetch to exhaustion, normalize,
// load. A fetch error keeps whatever was collected before the failure; the
// partial window is loaded and the error recorded.
func (s *Service) processWindow(ctx context.Context, norm *normalize.Normalizer, w models.Window, mode Mode, advance func(models.RunState)) models.WindowReport {
	raws, err := s.deps.Fetcher.SearchTickets(ctx, w)
	return s.deliver(ctx, norm, w, mode, raws, err, advance)
}

func (s *Service) processFeed(ctx context.Context, w models.Window, mode Mode, advance func(models.RunState)) models.WindowReport {
	raws, err := s.deps.Fetcher.FetchActivities(ctx)
	return s.deliver(ctx, s.activities, w, mode, raws, err, advance)
}

func (s *Service) deliver(ctx context.Context, norm *normalize.Normalizer, w models.Window, mode Mode, raws []models.RawRecord, fetchErr error, advance func(models.RunState)) models.WindowReport {
	wr := models.WindowReport{Window: w, Fetched: len(raws)}
	schema := norm.Schema()

	if fetchErr != nil {
		wr.Err = fetchErr
		slog.Error("window fetch failed",
			"window", w.Label(),
			"collected", len(raws),
			"error", fetchErr)
	}

	if s.deps.Archive != nil && len(raws) > 0 {
		if err := s.deps.Archive.ArchiveRecords(ctx, schema.Table, w, raws); err != nil {
			slog.Warn("raw archive failed", "window", w.Label(), "error", err)
		}
	}

	advance(models.StateNormalizing)
	rows := norm.NormalizeAll(raws)
	wr.Normalized = len(rows)

	advance(models.StateLoading)
	switch mode {
	case ModeExport:
		if len(rows) == 0 {
			break
		}
		path, err := s.deps.Exporter.WriteWindow(schema.Table, w, schema.ColumnNames(), rows)
		if err != nil {
			if wr.Err == nil {
				wr.Err = err
			}
			slog.Error("window export failed", "window", w.Label(), "error", err)
			break
		}
		wr.Inserted = len(rows)
		slog.Info("window exported", "window", w.Label(), "rows", len(rows), "path", path)
	default:
		lr := s.deps.Loader.Load(ctx, schema, rows)
		wr.Inserted = lr.Inserted
		wr.FailedRows = lr.Failed
		slog.Info("window loaded",
			"window", w.Label(),
			"fetched", wr.Fetched,
			"inserted", lr.Inserted,
			"failed", lr.Failed)
	}

	return wr
}

var statePipeline = map[models.RunState]int{
	models.StatePlanned:      0,
	models.StateFetching:     1,
	models.StateNormalizing:  2,
	models.StateLoading:      3,
	models.StateDeduplicated: 4,
	models.StateDone:         5,
}

// laterState returns the further of two run states in pipeline order, so
// concurrent windows can only move the aggregate state forward.
func laterState(a, b models.RunState) models.RunState {
	if statePipeline[b] > statePipeline[a] {
		return b
	}
	return a
}

// dedupe prunes duplicate rows once per table, after every window's load has
// finished. It never runs concurrently with an in-flight batch.
func (s *Service) dedupe(ctx context.Context, report *models.RunReport, schema *normalize.Schema, mode Mode) {
	if mode != ModePersist {
		report.State = models.StateDone
		return
	}

	removed, err := s.deps.Store.Dedupe(ctx, schema.Table, schema.Key, schema.Tiebreak)
	if err != nil {
		report.DedupeErr = fmt.Errorf("deduplication of %s failed: %w", schema.Table, err)
		report.State = models.StateFailed
		return
	}

	report.DuplicatesRemoved = removed
	report.State = models.StateDeduplicated
	slog.Info("duplicates removed", "table", schema.Table, "removed", removed)
	report.State = models.StateDone
}

func (s *Service) newReport(entity string, mode Mode) *models.RunReport {
	return &models.RunReport{
		RunID:     uuid.NewString(),
		Entity:    entity,
		Mode:      string(mode),
		State:     models.StatePlanned,
		StartedAt: time.Now().UTC(),
	}
}

// finish closes out the report: dead-letter failed windows, persist the run
// status, log the aggregate outcome.
func (s *Service) finish(ctx context.Context, report *models.RunReport) {
	report.FinishedAt = time.Now().UTC()

	if s.deps.DeadLetter != nil {
		for _, w := range report.Windows {
			if w.Err == nil {
				continue
			}
			if err := s.deps.DeadLetter.PushWindow(ctx, report.Entity, w.Window.Label(), w.Err.Error()); err != nil {
				slog.Warn("dead letter push failed", "window", w.Window.Label(), "error", err)
			}
		}
	}

	if s.deps.Status != nil {
		status := models.RunStatus{
			Entity:            report.Entity,
			RunID:             report.RunID,
			State:             string(report.State),
			StartedAt:         report.StartedAt,
			FinishedAt:        report.FinishedAt,
			WindowsAttempted:  report.WindowsAttempted(),
			WindowsFailed:     report.WindowsFailed(),
			RowsInserted:      report.RowsInserted(),
			RowsFailed:        report.RowsFailed(),
			DuplicatesRemoved: report.DuplicatesRemoved,
		}
		if report.FatalErr != nil {
			status.ErrorMessage = report.FatalErr.Error()
		} else if report.DedupeErr != nil {
			status.ErrorMessage = report.DedupeErr.Error()
		}
		if err := s.deps.Status.PutRunStatus(ctx, status); err != nil {
			slog.Warn("run status persist failed", "run_id", report.RunID, "error", err)
		}
	}

	slog.Info("run finished",
		"run_id", report.RunID,
		"entity", report.Entity,
		"state", report.State,
		"windows", report.WindowsAttempted(),
		"windows_failed", report.WindowsFailed(),
		"rows_fetched", report.RowsFetched(),
		"rows_inserted", report.RowsInserted(),
		"rows_failed", report.RowsFailed(),
		"duplicates_removed", report.DuplicatesRemoved,
		"elapsed", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
}
