// Package rollback wraps an import in copy-then-replace file safety. The
// import runs against a working copy of the store; only a fully successful
// import is swapped into place, so a failure of any kind leaves the original
// store byte-for-byte untouched.
package rollback

import (
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/username/ledgervault/src/logger"
	"github.com/username/ledgervault/src/models"
)

const (
	workingSuffix = ".working"
	backupSuffix  = ".bak"
)

// ProgressTracker records how far an import got, for error reporting. The
// orchestrator updates it as it moves through stages.
type ProgressTracker struct {
	Stage      string
	EntityType string
	Processed  int
	Total      int
}

// SetStage marks the start of a new import stage.
func (p *ProgressTracker) SetStage(stage string) {
	p.Stage = stage
	p.EntityType = ""
	p.Processed = 0
	p.Total = 0
}

// SetEntity marks the start of one entity kind within a stage.
func (p *ProgressTracker) SetEntity(entityType string, total int) {
	p.EntityType = entityType
	p.Processed = 0
	p.Total = total
}

// Advance counts one processed record.
func (p *ProgressTracker) Advance() {
	p.Processed++
}

// ImportError is the structured failure returned when an import is
// discarded. The original store was not touched.
type ImportError struct {
	Stage      string
	EntityType string
	Processed  int
	Total      int
	Err        error
}

func (e *ImportError) Error() string {
	if e.EntityType != "" {
		return fmt.Sprintf("import failed during %s (%s, %d/%d processed): %v",
			e.Stage, e.EntityType, e.Processed, e.Total, e.Err)
	}
	return fmt.Sprintf("import failed during %s: %v", e.Stage, e.Err)
}

func (e *ImportError) Unwrap() error { return e.Err }

// OpenFunc opens the store at path, creating it with a full schema if absent.
type OpenFunc func(path string) (*sql.DB, error)

// ImportFunc runs the actual import against the working store.
type ImportFunc func(db *sql.DB, progress *ProgressTracker) (*models.ImportResult, error)

// WithRollback copies the store to a working path (or starts empty when no
// store exists yet), runs importFn against the copy, and atomically swaps
// the copy into place on success. On any failure the working copy is
// discarded and a structured *ImportError is returned.
func WithRollback(storePath string, open OpenFunc, importFn ImportFunc) (*models.ImportResult, error) {
	workingPath := storePath + workingSuffix
	progress := &ProgressTracker{Stage: "prepare"}

	// A leftover working file from a crashed run is stale by definition.
	if err := os.Remove(workingPath); err != nil && !os.IsNotExist(err) {
		return nil, importErr(progress, fmt.Errorf("removing stale working copy: %w", err))
	}

	originalExists := true
	if _, err := os.Stat(storePath); err != nil {
		if !os.IsNotExist(err) {
			return nil, importErr(progress, fmt.Errorf("stat store: %w", err))
		}
		originalExists = false
	}
	if originalExists {
		if err := copyFile(storePath, workingPath); err != nil {
			return nil, importErr(progress, err)
		}
	}

	result, err := runImport(workingPath, open, importFn, progress)
	if err != nil {
		if rmErr := os.Remove(workingPath); rmErr != nil && !os.IsNotExist(rmErr) {
			logger.L.Error("Failed to discard working copy", "path", workingPath, "error", rmErr)
		}
		logger.L.Warn("Import discarded, original store untouched",
			"store", storePath, "stage", progress.Stage, "entityType", progress.EntityType)
		return nil, importErr(progress, err)
	}

	progress.SetStage("swap")
	if err := swapIntoPlace(storePath, workingPath, originalExists); err != nil {
		os.Remove(workingPath)
		return nil, importErr(progress, err)
	}
	return result, nil
}

func runImport(workingPath string, open OpenFunc, importFn ImportFunc, progress *ProgressTracker) (*models.ImportResult, error) {
	progress.SetStage("open")
	db, err := open(workingPath)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return importFn(db, progress)
}

// swapIntoPlace replaces the original store with the working copy via a
// temporary backup; the backup is removed only after the swap completed.
func swapIntoPlace(storePath, workingPath string, originalExists bool) error {
	if !originalExists {
		if err := os.Rename(workingPath, storePath); err != nil {
			return fmt.Errorf("installing new store: %w", err)
		}
		return nil
	}

	backupPath := storePath + backupSuffix
	if err := os.Rename(storePath, backupPath); err != nil {
		return fmt.Errorf("backing up store: %w", err)
	}
	if err := os.Rename(workingPath, storePath); err != nil {
		// Put the original back; the import is lost but nothing is corrupted.
		if restoreErr := os.Rename(backupPath, storePath); restoreErr != nil {
			return fmt.Errorf("swapping store failed (%v) and restore failed: %w", err, restoreErr)
		}
		return fmt.Errorf("swapping store: %w", err)
	}
	if err := os.Remove(backupPath); err != nil {
		logger.L.Warn("Failed to remove store backup", "path", backupPath, "error", err)
	}
	return nil
}

func importErr(progress *ProgressTracker, err error) *ImportError {
	return &ImportError{
		Stage:      progress.Stage,
		EntityType: progress.EntityType,
		Processed:  progress.Processed,
		Total:      progress.Total,
		Err:        err,
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening store for copy: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating working copy: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying store: %w", err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return fmt.Errorf("syncing working copy: %w", err)
	}
	return out.Close()
}
