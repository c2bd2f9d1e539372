package normalize

import (
	"strings"

	"github.com/suporte-sac/zendesk-etl/internal/models"
)

// Normalizer flattens raw nested records into the fixed destination schema.
// Normalize is total: malformed or partial records degrade to NULL columns,
// never to an error.
type Normalizer struct {
	schema *Schema
	kinds  map[string]Kind
}

// New creates a Normalizer for one entity schema.
func New(schema *Schema) *Normalizer {
	return &Normalizer{
		schema: schema,
		kinds:  schema.kindIndex(),
	}
}

// Schema returns the normalizer's rule set.
func (n *Normalizer) Schema() *Schema {
	return n.schema
}

// Normalize converts one raw record into a row carrying every schema column.
func (n *Normalizer) Normalize(raw models.RawRecord) models.NormalizedRow {
	row := make(models.NormalizedRow, len(n.schema.Columns))

	// Rename/select top-level fields; everything unmapped drops.
	for rawName, column := range n.schema.Rename {
		row[column] = coerce(raw.Get(rawName), n.kinds[column])
	}

	// Promote declared nested sub-fields. Field is null-safe, so a rule that
	// expects an object but meets null or a scalar yields nil.
	for _, e := range n.schema.Extract {
		v := raw.Get(e.From)
		for _, step := range e.Path {
			v = v.Field(step)
		}
		row[e.Column] = coerce(v, n.kinds[e.Column])
	}

	// Promote mapped custom fields out of the custom_fields array.
	if len(n.schema.CustomFields) > 0 {
		if entries, ok := raw.Get("custom_fields").AsList(); ok {
			for _, entry := range entries {
				column, ok := n.schema.CustomFields[entry.Field("id").String()]
				if !ok {
					continue
				}
				row[column] = coerce(entry.Field("value"), n.kinds[column])
			}
		}
	}

	for _, d := range n.schema.Derive {
		row[d.Column] = d.Fn(raw, row)
	}

	// Final pass: every schema column present, blanks collapsed to NULL.
	for _, c := range n.schema.Columns {
		v, ok := row[c.Name]
		if !ok {
			row[c.Name] = nil
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			row[c.Name] = nil
		}
	}

	return row
}

// NormalizeAll flattens a window's fetch result in input order.
func (n *Normalizer) NormalizeAll(raws []models.RawRecord) []models.NormalizedRow {
	rows := make([]models.NormalizedRow, len(raws))
	for i, raw := range raws {
		rows[i] = n.Normalize(raw)
	}
	return rows
}
