// Package tabular abstracts the remote spreadsheet-like service that holds
// client records: a header row plus data rows per named table.
package tabular

import (
	"context"

	"github.com/normaq/clientbook/internal/model"
)

// Source is the tabular data source collaborator. No transactional
// guarantees: AppendRow and UpdateCell are independent operations and two
// concurrent writers interleave at cell granularity.
//
// Row and column indexes passed to UpdateCell are 1-based and include the
// header row, matching the remote API's addressing. The mediator owns the
// offset between in-memory row positions and sheet rows.
type Source interface {
	// HeaderRow returns the literal header strings of the table, in column
	// order, untrimmed.
	HeaderRow(ctx context.Context, tableID string) ([]string, error)
	// Rows returns every data row as a header->value mapping.
	Rows(ctx context.Context, tableID string) ([]model.Record, error)
	// AppendRow appends one row of values, ordered to match the header row.
	AppendRow(ctx context.Context, tableID string, values []string) error
	// UpdateCell writes a single cell at the 1-based sheet coordinates.
	UpdateCell(ctx context.Context, tableID string, row, col int, value string) error
}
