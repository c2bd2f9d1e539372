package archive

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/suporte-sac/zendesk-etl/internal/config"
	"github.com/suporte-sac/zendesk-etl/internal/models"
)

// Archive persists raw nested records as documents before they are flattened,
// so a schema change can be replayed without re-fetching the source.
type Archive interface {
	ArchiveRecords(ctx context.Context, entity string, w models.Window, records []models.RawRecord) error
	Close(ctx context.Context) error
}

// MongoArchive implements Archive on a MongoDB collection per entity kind.
type MongoArchive struct {
	client   *mongo.Client
	database string
}

// NewMongoArchive connects and verifies the archive cluster.
func NewMongoArchive(ctx context.Context, cfg config.StorageConfig) (*MongoArchive, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoDBURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &MongoArchive{client: client, database: cfg.MongoDatabase}, nil
}

// ArchiveRecords stores one window's raw fetch result. Each document keeps the
// untouched record plus the window label and capture time.
func (a *MongoArchive) ArchiveRecords(ctx context.Context, entity string, w models.Window, records []models.RawRecord) error {
	if len(records) == 0 {
		return nil
	}

	docs := make([]any, len(records))
	capturedAt := time.Now().UTC()
	for i, rec := range records {
		raw := make(map[string]any, len(rec))
		for k, v := range rec {
			raw[k] = v.Raw()
		}
		docs[i] = map[string]any{
			"window":      w.Label(),
			"captured_at": capturedAt,
			"record":      raw,
		}
	}

	coll := a.client.Database(a.database).Collection(entity)
	if _, err := coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to archive %d records for window %s: %w", len(records), w.Label(), err)
	}
	return nil
}

// Close disconnects from the archive cluster.
func (a *MongoArchive) Close(ctx context.Context) error {
	return a.client.Disconnect(ctx)
}
