package normalize

import (
	"strings"
	"time"

	"github.com/suporte-sac/zendesk-etl/internal/models"
)

// Bounds of the destination DATETIME columns. Timestamps outside this range
// load as NULL instead of failing the row.
var (
	minTimestamp = time.Date(1753, time.January, 1, 0, 0, 0, 0, time.UTC)
	maxTimestamp = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)
)

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// coerce converts one raw value to the column's destination type. Coercion is
// total: anything that does not fit becomes nil.
func coerce(v models.Value, kind Kind) any {
	if v.IsNull() {
		return nil
	}
	switch kind {
	case KindInt:
		if i, ok := v.AsInt(); ok {
			return i
		}
		return nil
	case KindFloat:
		if f, ok := v.AsNumber(); ok {
			return f
		}
		return nil
	case KindBool:
		if b, ok := v.AsBool(); ok {
			return b
		}
		return nil
	case KindTimestamp:
		return coerceTimestamp(v)
	default:
		return coerceString(v)
	}
}

// coerceTimestamp parses a date-like string and clamps it to the destination
// range. Unparseable values and non-strings become nil.
func coerceTimestamp(v models.Value) any {
	s, ok := v.AsString()
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		t = t.UTC()
		if t.Before(minTimestamp) || t.After(maxTimestamp) {
			return nil
		}
		return t
	}
	return nil
}

// coerceString flattens any value into a single scalar string: scalars render
// directly, lists collapse to a comma-joined string, and remaining structured
// values serialize to JSON.
func coerceString(v models.Value) any {
	if items, ok := v.AsList(); ok {
		parts := make([]string, len(items))
		for i, item := range items {
			parts[i] = item.String()
		}
		return strings.Join(parts, ", ")
	}
	return v.String()
}
