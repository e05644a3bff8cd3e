package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/username/ledgervault/src/config"
	"github.com/username/ledgervault/src/logger"
	"github.com/username/ledgervault/src/services"
)

// ImportHandler is the thin HTTP surface over the import service. It does
// no reconciliation work of its own.
type ImportHandler struct {
	importService services.ImportService
}

func NewImportHandler(importService services.ImportService) *ImportHandler {
	return &ImportHandler{importService: importService}
}

// HandleImport accepts a ledger export upload and runs a full reimport.
// The file arrives as multipart field "file" or as the raw request body;
// the source format defaults to the configured one.
func (h *ImportHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, config.Cfg.MaxUploadSizeBytes)

	source := r.URL.Query().Get("source")
	if source == "" {
		source = config.Cfg.DefaultImportSource
	}

	fileReader := r.Body
	if file, _, err := r.FormFile("file"); err == nil {
		defer file.Close()
		fileReader = file
	}

	result, err := h.importService.ProcessImport(fileReader, source)
	if err != nil {
		logger.L.Error("Import request failed", "source", source, "error", err)
		status := http.StatusInternalServerError
		if errors.Is(err, services.ErrParsingFailed) {
			status = http.StatusBadRequest
		}
		writeJSONError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"changeCounts": result.Counts,
		"changes":      result.Changes,
		"warnings":     result.Warnings,
	})
}

// HandleGetHistory returns the import audit trail, newest first.
func (h *ImportHandler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	records, err := h.importService.GetImportHistory()
	if err != nil {
		logger.L.Error("Fetching import history failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// HandleGetChanges returns the itemized changes of one import run.
func (h *ImportHandler) HandleGetChanges(w http.ResponseWriter, r *http.Request) {
	importID := r.PathValue("importID")
	if importID == "" {
		writeJSONError(w, http.StatusBadRequest, "missing import id")
		return
	}
	changes, err := h.importService.GetImportChanges(importID)
	if err != nil {
		logger.L.Error("Fetching import changes failed", "importID", importID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, changes)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.L.Error("Encoding response failed", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
