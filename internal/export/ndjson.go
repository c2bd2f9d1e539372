package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/suporte-sac/zendesk-etl/internal/models"
)

// NDJSONWriter writes one newline-delimited JSON file per window. It is the
// export-mode counterpart of the destination store.
type NDJSONWriter struct {
	dir string
}

// NewNDJSONWriter creates a writer rooted at dir.
func NewNDJSONWriter(dir string) *NDJSONWriter {
	return &NDJSONWriter{dir: dir}
}

// WriteWindow writes the window's rows to <entity>_<date>.ndjson, with
// timestamps rendered in their wire format.
func (w *NDJSONWriter) WriteWindow(entity string, win models.Window, columns []string, rows []models.NormalizedRow) (string, error) {
	path := filepath.Join(w.dir, fmt.Sprintf("%s_%s.ndjson", entity, win.Label()))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, row := range rows {
		out := make(map[string]any, len(columns))
		for _, c := range columns {
			v := row[c]
			if t, ok := v.(time.Time); ok {
				v = t.Format("2006-01-02T15:04:05")
			}
			out[c] = v
		}
		if err := enc.Encode(out); err != nil {
			return "", fmt.Errorf("failed to write export row: %w", err)
		}
	}

	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("failed to flush export file: %w", err)
	}
	return path, nil
}
