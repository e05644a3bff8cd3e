package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/ledgervault/src/config"
	"github.com/username/ledgervault/src/models"
	"github.com/username/ledgervault/src/services"
)

type stubImportService struct {
	result     *models.ImportResult
	processErr error
	records    []models.ImportRecord
	changes    []models.EntityChangeRecord
	gotSource  string
	gotBody    string
}

func (s *stubImportService) ProcessImport(fileReader io.Reader, source string) (*models.ImportResult, error) {
	raw, _ := io.ReadAll(fileReader)
	s.gotBody = string(raw)
	s.gotSource = source
	if s.processErr != nil {
		return nil, s.processErr
	}
	return s.result, nil
}

func (s *stubImportService) GetLatestImportResult() (*models.ImportResult, bool) {
	return s.result, s.result != nil
}

func (s *stubImportService) GetImportHistory() ([]models.ImportRecord, error) {
	return s.records, nil
}

func (s *stubImportService) GetImportChanges(importID string) ([]models.EntityChangeRecord, error) {
	return s.changes, nil
}

func TestMain(m *testing.M) {
	config.LoadConfig()
	m.Run()
}

func TestHandleImportRawBody(t *testing.T) {
	stub := &stubImportService{
		result: &models.ImportResult{
			Counts:   models.ChangeCounts{Created: 3},
			Warnings: []string{"something minor"},
		},
	}
	handler := NewImportHandler(stub)

	req := httptest.NewRequest(http.MethodPost, "/api/import", strings.NewReader("!Type:Bank\n^\n"))
	rec := httptest.NewRecorder()
	handler.HandleImport(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "qif", stub.gotSource)
	assert.Equal(t, "!Type:Bank\n^\n", stub.gotBody)

	var body struct {
		ChangeCounts models.ChangeCounts `json:"changeCounts"`
		Warnings     []string            `json:"warnings"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3, body.ChangeCounts.Created)
	assert.Equal(t, []string{"something minor"}, body.Warnings)
}

func TestHandleImportSourceOverride(t *testing.T) {
	stub := &stubImportService{result: &models.ImportResult{}}
	handler := NewImportHandler(stub)

	req := httptest.NewRequest(http.MethodPost, "/api/import?source=qif", strings.NewReader("^"))
	rec := httptest.NewRecorder()
	handler.HandleImport(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "qif", stub.gotSource)
}

func TestHandleImportParseErrorIsBadRequest(t *testing.T) {
	stub := &stubImportService{
		processErr: fmt.Errorf("%w: line 3", services.ErrParsingFailed),
	}
	handler := NewImportHandler(stub)

	req := httptest.NewRequest(http.MethodPost, "/api/import", strings.NewReader("garbage"))
	rec := httptest.NewRecorder()
	handler.HandleImport(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleImportFailureIsServerError(t *testing.T) {
	stub := &stubImportService{
		processErr: fmt.Errorf("%w: disk full", services.ErrImportFailed),
	}
	handler := NewImportHandler(stub)

	req := httptest.NewRequest(http.MethodPost, "/api/import", strings.NewReader("^"))
	rec := httptest.NewRecorder()
	handler.HandleImport(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleGetHistory(t *testing.T) {
	stub := &stubImportService{
		records: []models.ImportRecord{{ID: "abc", SourceHash: "deadbeef"}},
	}
	handler := NewImportHandler(stub)

	req := httptest.NewRequest(http.MethodGet, "/api/import/history", nil)
	rec := httptest.NewRecorder()
	handler.HandleGetHistory(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var records []models.ImportRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "abc", records[0].ID)
}

func TestHandleGetChanges(t *testing.T) {
	stub := &stubImportService{
		changes: []models.EntityChangeRecord{
			{ImportID: "abc", StableID: "TXN-000001", ChangeType: models.ChangeCreated, EntityType: models.EntityTransaction},
		},
	}
	handler := NewImportHandler(stub)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/import/history/{importID}/changes", handler.HandleGetChanges)

	req := httptest.NewRequest(http.MethodGet, "/api/import/history/abc/changes", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var changes []models.EntityChangeRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &changes))
	require.Len(t, changes, 1)
	assert.Equal(t, "TXN-000001", changes[0].StableID)
}
