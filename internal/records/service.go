package records

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/normaq/clientbook/internal/apperror"
	"github.com/normaq/clientbook/internal/model"
	"github.com/normaq/clientbook/internal/tabular"
)

// Semantic field names of the client portfolio. The literal headers in the
// sheet drift between revisions ("CLIENTES", "Clientes", " Revenda "...);
// everything goes through ResolveAlias or GetField.
const (
	FieldClient     = "CLIENTES"
	FieldConsultant = "NOVO CONSULTOR"
	FieldReseller   = "REVENDA"
)

// requiredFields are the columns the client views depend on. A missing one
// is logged on the read path but does not fail raw reads.
var requiredFields = []string{FieldClient, FieldConsultant, FieldReseller}

// Service is the record-store mediator. Reads go through the snapshot
// cache; writes fetch the header row fresh, bypass the cache, and
// invalidate it on success.
type Service struct {
	source tabular.Source
	cache  *SnapshotCache
	logger *slog.Logger
}

// NewService creates a record mediator over the given source.
func NewService(source tabular.Source, cache *SnapshotCache, logger *slog.Logger) *Service {
	return &Service{
		source: source,
		cache:  cache,
		logger: logger,
	}
}

// SheetRow converts an in-memory row position (0-based, data rows only)
// into the source's 1-based, header-inclusive row number. The offset lives
// here and nowhere else.
func SheetRow(position int) int {
	return position + 2
}

// ReadTable returns the table's rows, serving a cached snapshot when one
// was fetched within the TTL window.
//
// On a fetch failure an expired snapshot, if present, is served stale with
// a logged warning; with nothing cached the error surfaces as
// SourceUnavailable.
func (s *Service) ReadTable(ctx context.Context, tableID string) ([]model.Record, error) {
	if snap, fresh := s.cache.Get(tableID); fresh {
		return snap.Rows, nil
	}

	rows, err := s.fetch(ctx, tableID)
	if err != nil {
		if snap, _ := s.cache.Get(tableID); snap != nil {
			s.logger.Warn("tabular source unreachable, serving stale snapshot",
				slog.String("table", tableID),
				slog.Time("fetchedAt", snap.FetchedAt),
				slog.String("error", err.Error()),
			)
			return snap.Rows, nil
		}
		return nil, apperror.SourceUnavailable(tableID, err)
	}

	snap := s.cache.Put(tableID, rows)
	return snap.Rows, nil
}

// fetch pulls the rows from the source, trims header whitespace in the row
// keys (text otherwise preserved verbatim) and drops fully-empty rows.
func (s *Service) fetch(ctx context.Context, tableID string) ([]model.Record, error) {
	raw, err := s.source.Rows(ctx, tableID)
	if err != nil {
		return nil, err
	}

	rows := make([]model.Record, 0, len(raw))
	for _, rec := range raw {
		if rec.IsEmpty() {
			continue
		}
		cleaned := make(model.Record, len(rec))
		for k, v := range rec {
			cleaned[strings.TrimSpace(k)] = v
		}
		rows = append(rows, cleaned)
	}

	s.checkRequiredColumns(ctx, tableID)
	return rows, nil
}

// checkRequiredColumns resolves the portfolio fields against the header row
// itself. Row mappings are no substitute: a source may omit keys for empty
// cells, so a column can exist in the header without appearing in any row.
func (s *Service) checkRequiredColumns(ctx context.Context, tableID string) {
	headers, err := s.source.HeaderRow(ctx, tableID)
	if err != nil {
		s.logger.Debug("skipping required-column check, header row unavailable",
			slog.String("table", tableID),
			slog.String("error", err.Error()),
		)
		return
	}
	for _, field := range requiredFields {
		if _, _, ok := ResolveAlias(headers, field); !ok {
			s.logger.Warn("required column missing from table",
				slog.String("table", tableID),
				slog.String("field", field),
			)
		}
	}
}

// GetField scans the row's own keys for the semantic name, ignoring case
// and surrounding whitespace, and returns def when the field is absent or
// empty. It deliberately does not use a canonical header list: a row may
// carry keys no longer present in the current header row.
func GetField(row model.Record, name, def string) string {
	want := strings.TrimSpace(name)
	for k, v := range row {
		if strings.EqualFold(strings.TrimSpace(k), want) && v != "" {
			return v
		}
	}
	return def
}

// CreateRecord appends one row built from data, in the order of a freshly
// fetched header row. Data keys are matched to headers case-insensitively;
// headers with no matching key get an empty string. The read cache for the
// table is invalidated on success.
func (s *Service) CreateRecord(ctx context.Context, tableID string, data model.Record) error {
	headers, err := s.source.HeaderRow(ctx, tableID)
	if err != nil {
		return apperror.SourceUnavailable(tableID, err)
	}
	if len(headers) == 0 {
		return apperror.NotFound("table", tableID)
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}

	values := make([]string, len(headers))
	for i, h := range headers {
		if k, _, ok := ResolveAlias(keys, h); ok {
			values[i] = data[k]
		}
	}

	if err := s.source.AppendRow(ctx, tableID, values); err != nil {
		return apperror.SourceUnavailable(tableID, err)
	}

	s.cache.Invalidate(tableID)
	s.logger.Info("record created",
		slog.String("table", tableID),
		slog.String("client", GetField(data, FieldClient, "")),
	)
	return nil
}

// UpdateRecord writes each field of data into the row at the given
// in-memory position, one cell per resolvable key. A key with no matching
// header is skipped with a warning; the update succeeds if at least one
// cell was written and fails with ColumnNotFound if none resolved. The
// cache is invalidated after any write.
//
// Two concurrent updates to the same row interleave at cell granularity;
// the source offers nothing stronger and this mediator does not pretend
// otherwise.
func (s *Service) UpdateRecord(ctx context.Context, tableID string, position int, data model.Record) error {
	headers, err := s.source.HeaderRow(ctx, tableID)
	if err != nil {
		return apperror.SourceUnavailable(tableID, err)
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys) // deterministic write order

	written := 0
	row := SheetRow(position)
	for _, k := range keys {
		_, col, ok := ResolveAlias(headers, k)
		if !ok {
			s.logger.Warn("skipping field with no matching column",
				slog.String("table", tableID),
				slog.String("field", k),
			)
			continue
		}
		if err := s.source.UpdateCell(ctx, tableID, row, col+1, data[k]); err != nil {
			// Cells written before the failure stay written. Invalidate so
			// the next read shows what actually landed.
			s.cache.Invalidate(tableID)
			return apperror.SourceUnavailable(tableID,
				fmt.Errorf("updating row %d after %d cells: %w", row, written, err))
		}
		written++
	}

	if written == 0 {
		return apperror.ColumnNotFound(strings.Join(keys, ", "))
	}

	s.cache.Invalidate(tableID)
	s.logger.Info("record updated",
		slog.String("table", tableID),
		slog.Int("sheetRow", row),
		slog.Int("cells", written),
		slog.Int("skipped", len(keys)-written),
	)
	return nil
}

// ListClients returns the distinct non-empty client names of the table,
// sorted, from the cached read path.
func (s *Service) ListClients(ctx context.Context, tableID string) ([]string, error) {
	rows, err := s.ReadTable(ctx, tableID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var names []string
	for _, row := range rows {
		name := GetField(row, FieldClient, "")
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// GetClient returns the first row whose client field equals name
// (whitespace-trimmed, case preserved), as a semantic Client view.
func (s *Service) GetClient(ctx context.Context, tableID, name string) (*model.Client, error) {
	rows, err := s.ReadTable(ctx, tableID)
	if err != nil {
		return nil, err
	}

	want := strings.TrimSpace(name)
	for _, row := range rows {
		if GetField(row, FieldClient, "") != want {
			continue
		}
		return &model.Client{
			Name:       want,
			Consultant: GetField(row, FieldConsultant, ""),
			Reseller:   GetField(row, FieldReseller, ""),
			Row:        row,
		}, nil
	}
	return nil, apperror.NotFound("client", name)
}
