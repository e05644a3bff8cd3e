package history

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/ledgervault/src/database"
	"github.com/username/ledgervault/src/models"
	"github.com/username/ledgervault/src/utils"
)

func openTestStore(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func finalize(t *testing.T, db *sql.DB, raw []byte, result *models.ImportResult, retention int) string {
	t.Helper()
	tx, err := db.Begin()
	require.NoError(t, err)
	importID, err := Finalize(tx, raw, result, retention)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	return importID
}

func TestFinalizeRecordsCountsAndChanges(t *testing.T) {
	db := openTestStore(t)

	result := &models.ImportResult{
		Counts: models.ChangeCounts{Created: 2, Orphaned: 1},
		Changes: []models.EntityChange{
			{StableID: "ACC-000001", EntityType: models.EntityAccount, Type: models.ChangeCreated},
			{StableID: "TXN-000001", EntityType: models.EntityTransaction, Type: models.ChangeCreated},
			{StableID: "TXN-000002", EntityType: models.EntityTransaction, Type: models.ChangeOrphaned},
		},
	}
	raw := []byte("!Type:Bank\n^\n")
	importID := finalize(t, db, raw, result, 20)

	records, err := List(db)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, importID, records[0].ID)
	assert.Equal(t, utils.ContentHash(raw), records[0].SourceHash)
	assert.Equal(t, result.Counts, records[0].ChangeCounts)

	changes, err := Changes(db, importID)
	require.NoError(t, err)
	require.Len(t, changes, 3)
	assert.Equal(t, "ACC-000001", changes[0].StableID)
	assert.Equal(t, models.ChangeOrphaned, changes[2].ChangeType)
}

func TestFinalizeTouchesModifiedIdentities(t *testing.T) {
	db := openTestStore(t)

	_, err := db.Exec(
		`INSERT INTO stable_identities (id, entity_type, signature) VALUES ('TXN-000001', ?, 'sig')`,
		models.EntityTransaction)
	require.NoError(t, err)

	result := &models.ImportResult{
		Counts: models.ChangeCounts{Modified: 1},
		Changes: []models.EntityChange{
			{StableID: "TXN-000001", EntityType: models.EntityTransaction, Type: models.ChangeModified},
		},
	}
	finalize(t, db, []byte("x"), result, 20)

	var lastModified sql.NullString
	err = db.QueryRow(`SELECT last_modified_at FROM stable_identities WHERE id = 'TXN-000001'`).Scan(&lastModified)
	require.NoError(t, err)
	assert.True(t, lastModified.Valid)
}

func TestRetentionPrunesOldestImportsAndTheirChanges(t *testing.T) {
	db := openTestStore(t)

	var importIDs []string
	for i := 0; i < 25; i++ {
		result := &models.ImportResult{
			Counts: models.ChangeCounts{Created: 1},
			Changes: []models.EntityChange{
				{StableID: "ACC-000001", EntityType: models.EntityAccount, Type: models.ChangeCreated},
			},
		}
		importIDs = append(importIDs, finalize(t, db, []byte{byte(i)}, result, 20))
	}

	records, err := List(db)
	require.NoError(t, err)
	require.Len(t, records, 20)

	// Newest first; the five oldest imports are gone.
	retained := make(map[string]bool, len(records))
	for _, rec := range records {
		retained[rec.ID] = true
	}
	for _, id := range importIDs[:5] {
		assert.False(t, retained[id])
	}
	for _, id := range importIDs[5:] {
		assert.True(t, retained[id])
	}

	var changeCount int
	err = db.QueryRow(`SELECT COUNT(*) FROM entity_changes`).Scan(&changeCount)
	require.NoError(t, err)
	assert.Equal(t, 20, changeCount)

	// Pruned imports answer with no changes rather than an error.
	changes, err := Changes(db, importIDs[0])
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestFinalizeDefaultsRetention(t *testing.T) {
	db := openTestStore(t)

	for i := 0; i < DefaultRetention+3; i++ {
		finalize(t, db, []byte{byte(i)}, &models.ImportResult{}, 0)
	}

	records, err := List(db)
	require.NoError(t, err)
	assert.Len(t, records, DefaultRetention)
}
