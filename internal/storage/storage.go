package storage

import (
	"context"
	"fmt"

	"github.com/suporte-sac/zendesk-etl/internal/config"
	"github.com/suporte-sac/zendesk-etl/internal/models"
)

// Store is the destination of normalized rows. Each batch runs inside its own
// transaction scope so concurrent loaders never share connection state.
type Store interface {
	BeginBatch(ctx context.Context, table string, columns []string) (BatchTx, error)
	Dedupe(ctx context.Context, table string, key []string, tiebreak string) (int64, error)
	Close() error
}

// BatchTx is one batch's transaction. A row-level insert failure leaves the
// transaction usable; Commit persists every row that succeeded.
type BatchTx interface {
	InsertRow(ctx context.Context, row models.NormalizedRow) error
	Commit() error
	Rollback() error
}

// StatusStore persists the most recent run outcome per entity.
type StatusStore interface {
	PutRunStatus(ctx context.Context, status models.RunStatus) error
	GetRunStatus(ctx context.Context, entity string) (*models.RunStatus, error)
	Close() error
}

// RowError reports a single-row insert failure. The row is skipped and the
// batch continues.
type RowError struct {
	Table string
	RowID any
	Err   error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("insert row id=%v into %s: %v", e.RowID, e.Table, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// BatchError reports a whole-batch connection or commit failure. The batch is
// abandoned; other batches are unaffected.
type BatchError struct {
	Table string
	Batch int
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %d for %s: %v", e.Batch, e.Table, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// NewStore creates the destination store from configuration.
func NewStore(cfg config.StorageConfig) (Store, error) {
	if cfg.PostgresURI == "" {
		return nil, fmt.Errorf("POSTGRES_URI is required for persist mode")
	}
	return NewPostgresStore(cfg)
}

// NewStatusStore creates the optional run-status store. A nil store with a
// nil error means status tracking is not configured.
func NewStatusStore(cfg config.StorageConfig) (StatusStore, error) {
	if cfg.StatusTable == "" {
		return nil, nil
	}
	return NewDynamoDBStatusStore(cfg)
}
