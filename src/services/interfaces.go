package services

import (
	"errors"
	"io"

	"github.com/username/ledgervault/src/models"
)

var (
	ErrParsingFailed = errors.New("parsing failed")
	ErrImportFailed  = errors.New("import failed")
)

// ImportService is the core operation surface exposed to CLI and HTTP
// callers: run a reimport of a ledger export against the store, and read
// back the audit trail.
type ImportService interface {
	ProcessImport(fileReader io.Reader, source string) (*models.ImportResult, error)
	GetLatestImportResult() (*models.ImportResult, bool)
	GetImportHistory() ([]models.ImportRecord, error)
	GetImportChanges(importID string) ([]models.EntityChangeRecord, error)
}
