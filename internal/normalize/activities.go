package normalize

import (
	"regexp"
	"time"

	"github.com/suporte-sac/zendesk-etl/internal/models"
)

var ticketRefPattern = regexp.MustCompile(`#(\d+)`)

// ActivitySchema is the rule set for the activity-feed pipeline. The actor,
// target, object and user composites promote into flat columns; object and
// user are also kept JSON-serialized. Activities carry split date and hour
// columns alongside the full timestamps because the reporting layer groups by
// them.
func ActivitySchema(table string) *Schema {
	return &Schema{
		Table: table,
		Columns: []Column{
			{Name: "id", Kind: KindInt},
			{Name: "title", Kind: KindString},
			{Name: "verb", Kind: KindString},
			{Name: "user_id", Kind: KindInt},
			{Name: "actor_id", Kind: KindInt},
			{Name: "actor_name", Kind: KindString},
			{Name: "created_at", Kind: KindTimestamp},
			{Name: "updated_at", Kind: KindTimestamp},
			{Name: "created_at_data", Kind: KindString},
			{Name: "created_at_hora", Kind: KindString},
			{Name: "updated_at_data", Kind: KindString},
			{Name: "updated_at_hora", Kind: KindString},
			{Name: "object", Kind: KindString},
			{Name: "user", Kind: KindString},
			{Name: "ticket_id", Kind: KindString},
			{Name: "ticket_type", Kind: KindString},
			{Name: "action", Kind: KindString},
			{Name: "activity_url", Kind: KindString},
			{Name: "comment", Kind: KindString},
			{Name: "subject", Kind: KindString},
			{Name: "publico", Kind: KindString},
		},
		Rename: map[string]string{
			"id":         "id",
			"title":      "title",
			"verb":       "verb",
			"created_at": "created_at",
			"updated_at": "updated_at",
			"object":     "object",
			"user":       "user",
			"url":        "activity_url",
		},
		Extract: []Extraction{
			{Column: "actor_id", From: "actor", Path: []string{"id"}},
			{Column: "actor_name", From: "actor", Path: []string{"name"}},
			{Column: "ticket_id", From: "target", Path: []string{"id"}},
			{Column: "ticket_type", From: "target", Path: []string{"type"}},
			{Column: "user_id", From: "user", Path: []string{"id"}},
			{Column: "comment", From: "object", Path: []string{"comment", "value"}},
			{Column: "subject", From: "object", Path: []string{"ticket", "subject"}},
			{Column: "publico", From: "object", Path: []string{"comment", "public"}},
		},
		Derive: []DeriveRule{
			{Column: "action", Fn: deriveAction},
			{Column: "ticket_id", Fn: deriveTicketID},
			{Column: "created_at_data", Fn: deriveDate("created_at")},
			{Column: "created_at_hora", Fn: deriveHour("created_at")},
			{Column: "updated_at_data", Fn: deriveDate("updated_at")},
			{Column: "updated_at_hora", Fn: deriveHour("updated_at")},
		},
		Key:      []string{"id", "user_id", "actor_id", "ticket_id", "action"},
		Tiebreak: "id",
	}
}

func deriveAction(raw models.RawRecord, _ models.NormalizedRow) any {
	if s, ok := raw.Get("verb").AsString(); ok {
		return s
	}
	return nil
}

// deriveTicketID falls back to the "#<id>" reference embedded in the activity
// title when the target object carries no ticket id.
func deriveTicketID(raw models.RawRecord, row models.NormalizedRow) any {
	if v, ok := row["ticket_id"]; ok && v != nil {
		return v
	}
	title, ok := raw.Get("title").AsString()
	if !ok {
		return nil
	}
	m := ticketRefPattern.FindStringSubmatch(title)
	if m == nil {
		return nil
	}
	return m[1]
}

func deriveDate(column string) func(models.RawRecord, models.NormalizedRow) any {
	return func(_ models.RawRecord, row models.NormalizedRow) any {
		if t, ok := row[column].(time.Time); ok {
			return t.Format("2006-01-02")
		}
		return nil
	}
}

func deriveHour(column string) func(models.RawRecord, models.NormalizedRow) any {
	return func(_ models.RawRecord, row models.NormalizedRow) any {
		if t, ok := row[column].(time.Time); ok {
			return t.Format("15:04:05")
		}
		return nil
	}
}
