package normalize

import "github.com/suporte-sac/zendesk-etl/internal/models"

// Kind is the destination type of a column. String columns absorb composite
// values: lists collapse to a comma-joined string and objects serialize to
// JSON.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindTimestamp
)

// Column declares one destination column. The declared order is the column
// order of every NormalizedRow.
type Column struct {
	Name string
	Kind Kind
}

// Extraction promotes a nested sub-field into its own column. From names the
// top-level raw field holding the object; Path descends inside it. A null or
// non-object anywhere along the way yields null.
type Extraction struct {
	Column string
	From   string
	Path   []string
}

// DeriveRule computes a column from the raw record and the row built so far.
// Derivations run after renames and extractions.
type DeriveRule struct {
	Column string
	Fn     func(raw models.RawRecord, row models.NormalizedRow) any
}

// Schema is the static normalization rule set for one entity kind.
type Schema struct {
	Table   string
	Columns []Column

	// Rename selects and renames top-level raw fields; unmapped fields drop.
	Rename map[string]string

	// Extract promotes declared nested sub-fields.
	Extract []Extraction

	// CustomFields maps Zendesk custom field ids to columns. Entries of the
	// raw custom_fields array with unmapped ids drop.
	CustomFields map[string]string

	Derive []DeriveRule

	// Key is the uniqueness signature of the destination table; Tiebreak
	// orders each partition when duplicates are pruned.
	Key      []string
	Tiebreak string
}

// ColumnNames returns the declared column order.
func (s *Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

func (s *Schema) kindIndex() map[string]Kind {
	kinds := make(map[string]Kind, len(s.Columns))
	for _, c := range s.Columns {
		kinds[c.Name] = c.Kind
	}
	return kinds
}
