package identity

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/username/ledgervault/src/models"
)

// ErrUnknownEntityType is returned when minting an id for a type the
// registry has no prefix for. This aborts the whole import.
var ErrUnknownEntityType = errors.New("unknown entity type")

// idPrefixes gives each entity type its own id namespace, so the 7th
// security and the 7th transaction never collide.
var idPrefixes = map[string]string{
	models.EntityAccount:       "ACC",
	models.EntityCategory:      "CAT",
	models.EntityTag:           "TAG",
	models.EntitySecurity:      "SEC",
	models.EntityTransaction:   "TXN",
	models.EntitySplit:         "SPL",
	models.EntityPrice:         "PRC",
	models.EntityLot:           "LOT",
	models.EntityLotAllocation: "ALC",
}

// FormatStableID renders a typed id like "TXN-000042". The zero padding keeps
// lexicographic order equal to mint order, which the lot engine relies on.
func FormatStableID(prefix string, counter int64) string {
	return fmt.Sprintf("%s-%06d", prefix, counter)
}

// Registry issues and tracks stable identities inside one store transaction.
// No operation ever deletes a row; counters never regress because they live
// in the id_counters table alongside the identities.
type Registry struct {
	tx *sql.Tx
}

func NewRegistry(tx *sql.Tx) *Registry {
	return &Registry{tx: tx}
}

// CreateStableID atomically increments the per-type counter and returns the
// next typed id. Fails for unknown entity types.
func (r *Registry) CreateStableID(entityType string) (string, error) {
	prefix, ok := idPrefixes[entityType]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownEntityType, entityType)
	}

	if _, err := r.tx.Exec(
		`INSERT INTO id_counters (entity_type, counter) VALUES (?, 0)
		 ON CONFLICT(entity_type) DO NOTHING`, entityType); err != nil {
		return "", fmt.Errorf("seeding id counter for %s: %w", entityType, err)
	}

	var counter int64
	err := r.tx.QueryRow(
		`UPDATE id_counters SET counter = counter + 1 WHERE entity_type = ?
		 RETURNING counter`, entityType).Scan(&counter)
	if err != nil {
		return "", fmt.Errorf("incrementing id counter for %s: %w", entityType, err)
	}
	return FormatStableID(prefix, counter), nil
}

// Insert records a brand-new identity as active.
func (r *Registry) Insert(id, entityType, signature string) error {
	_, err := r.tx.Exec(
		`INSERT INTO stable_identities (id, entity_type, signature) VALUES (?, ?, ?)`,
		id, entityType, signature)
	if err != nil {
		return fmt.Errorf("inserting stable identity %s: %w", id, err)
	}
	return nil
}

// MarkOrphaned stamps an identity as unobserved. Idempotent: an already
// orphaned identity keeps its original orphan timestamp.
func (r *Registry) MarkOrphaned(id string) error {
	_, err := r.tx.Exec(
		`UPDATE stable_identities SET orphaned_at = ? WHERE id = ? AND orphaned_at IS NULL`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("orphaning stable identity %s: %w", id, err)
	}
	return nil
}

// Restore clears the orphan stamp when a signature reappears.
func (r *Registry) Restore(id string) error {
	_, err := r.tx.Exec(
		`UPDATE stable_identities SET orphaned_at = NULL, last_modified_at = ? WHERE id = ?`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("restoring stable identity %s: %w", id, err)
	}
	return nil
}

// Touch updates the last-modified stamp without changing lifecycle state.
func (r *Registry) Touch(id string) error {
	_, err := r.tx.Exec(
		`UPDATE stable_identities SET last_modified_at = ? WHERE id = ?`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("touching stable identity %s: %w", id, err)
	}
	return nil
}

// SetFingerprint stores the content fingerprint used for modified-detection
// on the next import.
func (r *Registry) SetFingerprint(id, fingerprint string) error {
	_, err := r.tx.Exec(
		`UPDATE stable_identities SET fingerprint = ? WHERE id = ?`,
		fingerprint, id)
	if err != nil {
		return fmt.Errorf("updating fingerprint for %s: %w", id, err)
	}
	return nil
}
