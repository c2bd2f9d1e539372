package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/suporte-sac/zendesk-etl/internal/config"
	"github.com/suporte-sac/zendesk-etl/internal/models"
)

// PostgresStore implements Store against a PostgreSQL destination.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens and verifies the destination connection pool.
func NewPostgresStore(cfg config.StorageConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// BeginBatch opens one transaction and prepares the insert statement for the
// given column order.
func (p *PostgresStore) BeginBatch(ctx context.Context, table string, columns []string) (BatchTx, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin batch transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertSQL(table, columns))
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to prepare insert for %s: %w", table, err)
	}

	return &pgBatch{tx: tx, stmt: stmt, columns: columns}, nil
}

// Dedupe deletes every row but the first of each uniqueness-key partition in
// a single statement. Running it with no duplicates present is a no-op.
func (p *PostgresStore) Dedupe(ctx context.Context, table string, key []string, tiebreak string) (int64, error) {
	res, err := p.db.ExecContext(ctx, dedupeSQL(table, key, tiebreak))
	if err != nil {
		return 0, fmt.Errorf("failed to remove duplicates from %s: %w", table, err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count removed duplicates: %w", err)
	}
	return removed, nil
}

// Close closes the connection pool.
func (p *PostgresStore) Close() error {
	return p.db.Close()
}

// pgBatch is one batch's transaction. Each insert runs under a savepoint so a
// failed row does not poison the rows that already succeeded.
type pgBatch struct {
	tx      *sql.Tx
	stmt    *sql.Stmt
	columns []string
}

func (b *pgBatch) InsertRow(ctx context.Context, row models.NormalizedRow) error {
	values := make([]any, len(b.columns))
	for i, c := range b.columns {
		values[i] = row[c]
	}

	if _, err := b.tx.ExecContext(ctx, "SAVEPOINT batch_row"); err != nil {
		return err
	}
	if _, err := b.stmt.ExecContext(ctx, values...); err != nil {
		if _, rbErr := b.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT batch_row"); rbErr != nil {
			return fmt.Errorf("%v (savepoint rollback failed: %w)", err, rbErr)
		}
		return err
	}
	_, err := b.tx.ExecContext(ctx, "RELEASE SAVEPOINT batch_row")
	return err
}

func (b *pgBatch) Commit() error {
	b.stmt.Close()
	return b.tx.Commit()
}

func (b *pgBatch) Rollback() error {
	b.stmt.Close()
	return b.tx.Rollback()
}

func insertSQL(table string, columns []string) string {
	quoted := make([]string, len(columns))
	params := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
		params[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(quoted, ", "), strings.Join(params, ", "))
}

func dedupeSQL(table string, key []string, tiebreak string) string {
	partition := make([]string, len(key))
	for i, c := range key {
		partition[i] = quoteIdent(c)
	}
	return fmt.Sprintf(`DELETE FROM %s WHERE ctid IN (
	SELECT ctid FROM (
		SELECT ctid, ROW_NUMBER() OVER (PARTITION BY %s ORDER BY %s) AS row_num
		FROM %s
	) ranked
	WHERE row_num > 1
)`, quoteIdent(table), strings.Join(partition, ", "), quoteIdent(tiebreak), quoteIdent(table))
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
