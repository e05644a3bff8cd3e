package services

import (
	"bytes"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/ledgervault/src/database"
	"github.com/username/ledgervault/src/history"
	"github.com/username/ledgervault/src/importer"
	"github.com/username/ledgervault/src/logger"
	"github.com/username/ledgervault/src/models"
	"github.com/username/ledgervault/src/parsers"
	"github.com/username/ledgervault/src/rollback"
)

const (
	ckLatestImportResult = "latest_import_result"
	ckImportHistory      = "import_history"

	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

type importServiceImpl struct {
	storePath   string
	retention   int
	resultCache *cache.Cache
}

func NewImportService(storePath string, retention int, resultCache *cache.Cache) ImportService {
	if resultCache == nil {
		resultCache = cache.New(DefaultCacheExpiration, CacheCleanupInterval)
	}
	return &importServiceImpl{
		storePath:   storePath,
		retention:   retention,
		resultCache: resultCache,
	}
}

// ProcessImport parses the export, then runs the reconciliation inside both
// safety nets: the store-level transaction (rolled back on any error) and
// the file-level rollback manager (working copy discarded on any error).
func (s *importServiceImpl) ProcessImport(fileReader io.Reader, source string) (*models.ImportResult, error) {
	overallStartTime := time.Now()
	logger.L.Info("ProcessImport START", "source", source, "store", s.storePath)

	raw, err := io.ReadAll(fileReader)
	if err != nil {
		return nil, fmt.Errorf("%w: reading input: %v", ErrParsingFailed, err)
	}

	parser, err := parsers.GetParser(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}
	data, err := parser.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}

	result, err := rollback.WithRollback(s.storePath, database.Open,
		func(db *sql.DB, progress *rollback.ProgressTracker) (*models.ImportResult, error) {
			dbTx, err := db.Begin()
			if err != nil {
				return nil, fmt.Errorf("beginning store transaction: %w", err)
			}
			defer dbTx.Rollback()

			res, err := importer.ProcessImport(dbTx, data, progress)
			if err != nil {
				return nil, err
			}

			progress.SetStage("history")
			if _, err := history.Finalize(dbTx, raw, res, s.retention); err != nil {
				return nil, err
			}

			if err := dbTx.Commit(); err != nil {
				return nil, fmt.Errorf("committing import transaction: %w", err)
			}
			return res, nil
		})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImportFailed, err)
	}

	s.resultCache.Set(ckLatestImportResult, result, cache.NoExpiration)
	s.resultCache.Delete(ckImportHistory)

	logger.L.Info("ProcessImport END", "source", source, "duration", time.Since(overallStartTime))
	return result, nil
}

func (s *importServiceImpl) GetLatestImportResult() (*models.ImportResult, bool) {
	if cached, found := s.resultCache.Get(ckLatestImportResult); found {
		return cached.(*models.ImportResult), true
	}
	return nil, false
}

func (s *importServiceImpl) GetImportHistory() ([]models.ImportRecord, error) {
	if cached, found := s.resultCache.Get(ckImportHistory); found {
		logger.L.Debug("Cache hit for import history")
		return cached.([]models.ImportRecord), nil
	}

	db, err := database.Open(s.storePath)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	records, err := history.List(db)
	if err != nil {
		return nil, err
	}
	s.resultCache.Set(ckImportHistory, records, DefaultCacheExpiration)
	return records, nil
}

func (s *importServiceImpl) GetImportChanges(importID string) ([]models.EntityChangeRecord, error) {
	db, err := database.Open(s.storePath)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return history.Changes(db, importID)
}
