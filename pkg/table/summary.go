package table

import (
	"github.com/ajitpratap0/quiver/pkg/json"
)

// ColumnSummary describes one schema field.
type ColumnSummary struct {
	Name      string `json:"name"`
	ArrowType string `json:"arrow_type"`
	Nullable  bool   `json:"nullable"`
}

// Summary is the host-facing description of a table schema.
type Summary struct {
	Columns  []ColumnSummary   `json:"columns"`
	Metadata map[string]string `json:"metadata"`
}

// Summary describes the table's columns and metadata.
func (t *Table) Summary() Summary {
	cols := make([]ColumnSummary, t.NumColumns())
	for i, f := range t.schema.Fields() {
		cols[i] = ColumnSummary{
			Name:      f.Name,
			ArrowType: f.Type.String(),
			Nullable:  f.Nullable,
		}
	}
	return Summary{Columns: cols, Metadata: t.Metadata()}
}

// SummaryJSON encodes Summary.
func (t *Table) SummaryJSON() ([]byte, error) {
	return json.MarshalCompact(t.Summary())
}
