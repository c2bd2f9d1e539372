package storage

import (
	"context"
	"log/slog"
	"sync"

	"github.com/suporte-sac/zendesk-etl/internal/config"
	"github.com/suporte-sac/zendesk-etl/internal/models"
	"github.com/suporte-sac/zendesk-etl/internal/normalize"
)

// Loader splits normalized rows into fixed-size batches and loads them with
// row-level fault isolation: a malformed row is recorded and skipped, a
// broken batch is recorded and abandoned, and neither stops the rest.
type Loader struct {
	store     Store
	batchSize int
	workers   int
	maxWidth  int
}

// NewLoader creates a Loader. workers bounds how many batches hold an open
// transaction at once.
func NewLoader(store Store, pipeline config.PipelineConfig, maxWidth int) *Loader {
	batchSize := pipeline.BatchSize
	if batchSize < 1 {
		batchSize = 500
	}
	workers := pipeline.Workers
	if workers < 1 {
		workers = 1
	}
	return &Loader{
		store:     store,
		batchSize: batchSize,
		workers:   workers,
		maxWidth:  maxWidth,
	}
}

// Load inserts rows into the schema's table and reports per-row outcomes.
// Row order is preserved inside each batch; batches carry no mutual ordering.
func (l *Loader) Load(ctx context.Context, schema *normalize.Schema, rows []models.NormalizedRow) models.LoadReport {
	if len(rows) == 0 {
		return models.LoadReport{}
	}

	var batches [][]models.NormalizedRow
	for start := 0; start < len(rows); start += l.batchSize {
		end := start + l.batchSize
		if end > len(rows) {
			end = len(rows)
		}
		batches = append(batches, rows[start:end])
	}

	reports := make([]models.LoadReport, len(batches))
	sem := make(chan struct{}, l.workers)
	var wg sync.WaitGroup
	for i, batch := range batches {
		wg.Add(1)
		go func(i int, batch []models.NormalizedRow) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			reports[i] = l.loadBatch(ctx, schema, i, batch)
		}(i, batch)
	}
	wg.Wait()

	var total models.LoadReport
	for _, r := range reports {
		total.Inserted += r.Inserted
		total.Failed += r.Failed
		total.Errors = append(total.Errors, r.Errors...)
	}
	return total
}

func (l *Loader) loadBatch(ctx context.Context, schema *normalize.Schema, idx int, batch []models.NormalizedRow) models.LoadReport {
	columns := schema.ColumnNames()

	tx, err := l.store.BeginBatch(ctx, schema.Table, columns)
	if err != nil {
		berr := &BatchError{Table: schema.Table, Batch: idx, Err: err}
		slog.Error("batch failed to open", "table", schema.Table, "batch", idx, "error", err)
		return models.LoadReport{Failed: len(batch), Errors: []error{berr}}
	}

	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	var report models.LoadReport
	for _, row := range batch {
		if err := tx.InsertRow(ctx, l.truncated(row)); err != nil {
			rerr := &RowError{Table: schema.Table, RowID: row["id"], Err: err}
			report.Failed++
			report.Errors = append(report.Errors, rerr)
			slog.Warn("row insert failed", "table", schema.Table, "batch", idx, "id", row["id"], "error", err)
			continue
		}
		report.Inserted++
	}

	if err := tx.Commit(); err != nil {
		berr := &BatchError{Table: schema.Table, Batch: idx, Err: err}
		slog.Error("batch commit failed", "table", schema.Table, "batch", idx, "error", err)
		return models.LoadReport{Failed: len(batch), Errors: []error{berr}}
	}
	committed = true

	return report
}

// truncated caps string values at the destination column width instead of
// letting oversize values fail the insert.
func (l *Loader) truncated(row models.NormalizedRow) models.NormalizedRow {
	if l.maxWidth <= 0 {
		return row
	}
	var out models.NormalizedRow
	for c, v := range row {
		s, ok := v.(string)
		if !ok || len(s) <= l.maxWidth {
			continue
		}
		if out == nil {
			out = make(models.NormalizedRow, len(row))
			for k, kv := range row {
				out[k] = kv
			}
		}
		runes := []rune(s)
		if len(runes) > l.maxWidth {
			out[c] = string(runes[:l.maxWidth])
		}
	}
	if out == nil {
		return row
	}
	return out
}
