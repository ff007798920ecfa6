package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/normaq/clientbook/internal/apperror"
	"github.com/normaq/clientbook/internal/model"
	"github.com/normaq/clientbook/internal/records"
)

// RecordsHandler exposes the record mediator. All routes require an active
// session; create and update additionally require the admin scope.
type RecordsHandler struct {
	records *records.Service
	tableID string
	logger  *slog.Logger
}

// NewRecordsHandler creates a RecordsHandler bound to the configured table.
func NewRecordsHandler(svc *records.Service, tableID string, logger *slog.Logger) *RecordsHandler {
	return &RecordsHandler{
		records: svc,
		tableID: tableID,
		logger:  logger,
	}
}

// HandleListClients is GET /api/clients: distinct client names, sorted.
func (h *RecordsHandler) HandleListClients(w http.ResponseWriter, r *http.Request) {
	names, err := h.records.ListClients(r.Context(), h.tableID)
	if err != nil {
		writeError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}

// HandleGetClient is GET /api/clients/{name}: the consultant and reseller
// assigned to one client, plus the raw row.
func (h *RecordsHandler) HandleGetClient(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		writeError(w, apperror.ValidationFailed("name", "client name is required"))
		return
	}

	client, err := h.records.GetClient(r.Context(), h.tableID, name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, client)
}

// HandleListRecords is GET /api/records: every row of the table, from the
// cached read path.
func (h *RecordsHandler) HandleListRecords(w http.ResponseWriter, r *http.Request) {
	rows, err := h.records.ReadTable(r.Context(), h.tableID)
	if err != nil {
		writeError(w, err)
		return
	}
	if rows == nil {
		rows = []model.Record{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// HandleCreateRecord is POST /api/records. The body is a mapping of field
// names to values; names are matched to the current headers
// case-insensitively.
func (h *RecordsHandler) HandleCreateRecord(w http.ResponseWriter, r *http.Request) {
	var data model.Record
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}
	if len(data) == 0 {
		writeError(w, apperror.ValidationFailed("body", "record data must not be empty"))
		return
	}

	if err := h.records.CreateRecord(r.Context(), h.tableID, data); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// HandleUpdateRecord is PATCH /api/records/{row}, where {row} is the
// 0-based position within the rows returned by GET /api/records. Fields
// that match no column are skipped; the response reports them.
func (h *RecordsHandler) HandleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	position, err := strconv.Atoi(chi.URLParam(r, "row"))
	if err != nil || position < 0 {
		writeError(w, apperror.ValidationFailed("row", "row must be a non-negative integer"))
		return
	}

	var data model.Record
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}
	if len(data) == 0 {
		writeError(w, apperror.ValidationFailed("body", "record data must not be empty"))
		return
	}

	if err := h.records.UpdateRecord(r.Context(), h.tableID, position, data); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
