// Package history keeps the append-only audit trail of imports: one
// import_history row per run plus one entity_changes row per identity-level
// effect, pruned to a retention window by recency.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/username/ledgervault/src/models"
	"github.com/username/ledgervault/src/utils"
)

// DefaultRetention is how many import records are kept when callers pass no
// explicit retention.
const DefaultRetention = 20

// Finalize records one import's effect inside the same store transaction the
// import ran in: the history row (with a truncated content hash of the raw
// source for dedup detection), the itemized changes, a last-modified touch
// for every modified identity, and retention pruning.
func Finalize(tx *sql.Tx, rawSource []byte, result *models.ImportResult, retention int) (string, error) {
	if retention < 1 {
		retention = DefaultRetention
	}

	importID := uuid.NewString()
	countsJSON, err := json.Marshal(result.Counts)
	if err != nil {
		return "", fmt.Errorf("encoding change counts: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO import_history (id, created_at, source_hash, change_counts) VALUES (?, ?, ?, ?)`,
		importID, time.Now().UTC(), utils.ContentHash(rawSource), string(countsJSON)); err != nil {
		return "", fmt.Errorf("inserting import history row: %w", err)
	}

	changeStmt, err := tx.Prepare(
		`INSERT INTO entity_changes (import_id, stable_id, change_type, entity_type) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("preparing entity change insert: %w", err)
	}
	defer changeStmt.Close()

	now := time.Now().UTC()
	for _, change := range result.Changes {
		if _, err := changeStmt.Exec(importID, change.StableID, string(change.Type), change.EntityType); err != nil {
			return "", fmt.Errorf("inserting entity change for %s: %w", change.StableID, err)
		}
		if change.Type == models.ChangeModified {
			if _, err := tx.Exec(
				`UPDATE stable_identities SET last_modified_at = ? WHERE id = ?`, now, change.StableID); err != nil {
				return "", fmt.Errorf("touching modified identity %s: %w", change.StableID, err)
			}
		}
	}

	if err := prune(tx, retention); err != nil {
		return "", err
	}
	return importID, nil
}

// prune removes import rows beyond the most recent retention count, together
// with their change rows. Identity lifecycle is untouched.
func prune(tx *sql.Tx, retention int) error {
	if _, err := tx.Exec(
		`DELETE FROM entity_changes WHERE import_id NOT IN (
			SELECT id FROM import_history ORDER BY created_at DESC, id LIMIT ?)`, retention); err != nil {
		return fmt.Errorf("pruning entity changes: %w", err)
	}
	if _, err := tx.Exec(
		`DELETE FROM import_history WHERE id NOT IN (
			SELECT id FROM import_history ORDER BY created_at DESC, id LIMIT ?)`, retention); err != nil {
		return fmt.Errorf("pruning import history: %w", err)
	}
	return nil
}

// List returns import records newest first.
func List(db *sql.DB) ([]models.ImportRecord, error) {
	rows, err := db.Query(
		`SELECT id, created_at, source_hash, change_counts FROM import_history ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("querying import history: %w", err)
	}
	defer rows.Close()

	var records []models.ImportRecord
	for rows.Next() {
		var (
			rec        models.ImportRecord
			countsJSON string
		)
		if err := rows.Scan(&rec.ID, &rec.CreatedAt, &rec.SourceHash, &countsJSON); err != nil {
			return nil, fmt.Errorf("scanning import history row: %w", err)
		}
		if err := json.Unmarshal([]byte(countsJSON), &rec.ChangeCounts); err != nil {
			return nil, fmt.Errorf("decoding change counts for import %s: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating import history: %w", err)
	}
	return records, nil
}

// Changes returns the itemized changes of one import.
func Changes(db *sql.DB, importID string) ([]models.EntityChangeRecord, error) {
	rows, err := db.Query(
		`SELECT import_id, stable_id, change_type, entity_type FROM entity_changes WHERE import_id = ? ORDER BY id`,
		importID)
	if err != nil {
		return nil, fmt.Errorf("querying entity changes: %w", err)
	}
	defer rows.Close()

	var changes []models.EntityChangeRecord
	for rows.Next() {
		var c models.EntityChangeRecord
		var changeType string
		if err := rows.Scan(&c.ImportID, &c.StableID, &changeType, &c.EntityType); err != nil {
			return nil, fmt.Errorf("scanning entity change row: %w", err)
		}
		c.ChangeType = models.ChangeType(changeType)
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entity changes: %w", err)
	}
	return changes, nil
}
