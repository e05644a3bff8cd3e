// Package importer drives a full reimport of a parsed ledger file: it wipes
// the domain tables, replays entity creation/matching in dependency order,
// recomputes running balances, rebuilds lot state, orphans unseen identities
// and reports the itemized changes. The whole body runs inside one store
// transaction owned by the caller; a mid-way failure rolls everything back.
package importer

import (
	"database/sql"
	"fmt"

	"github.com/username/ledgervault/src/database"
	"github.com/username/ledgervault/src/identity"
	"github.com/username/ledgervault/src/logger"
	"github.com/username/ledgervault/src/lots"
	"github.com/username/ledgervault/src/matching"
	"github.com/username/ledgervault/src/models"
	"github.com/username/ledgervault/src/rollback"
)

// matchedEntityTypes is the dependency order entities are replayed in. Lots
// and allocations are derived later by the lot engine but share the same
// matching machinery.
var matchedEntityTypes = []string{
	models.EntityAccount,
	models.EntityCategory,
	models.EntityTag,
	models.EntitySecurity,
	models.EntityTransaction,
	models.EntitySplit,
	models.EntityPrice,
	models.EntityLot,
	models.EntityLotAllocation,
}

type orchestrator struct {
	tx       *sql.Tx
	registry *identity.Registry
	progress *rollback.ProgressTracker
	lookups  map[string]matching.Lookup
	result   *models.ImportResult
	seq      int64

	accountIDs        map[string]string // exact name -> stable id
	categoryIDs       map[string]string
	securityIDsByTick map[string]string
	securityIDsByName map[string]string // normalized name -> stable id

	insertedTxs []models.Transaction
	priceIndex  lots.PriceIndex
}

// ProcessImport replays one parsed ledger export against the store inside
// the given transaction and returns the change counts, itemized changes and
// recoverable warnings. progress may be nil.
func ProcessImport(tx *sql.Tx, data *models.ImportData, progress *rollback.ProgressTracker) (*models.ImportResult, error) {
	if progress == nil {
		progress = &rollback.ProgressTracker{}
	}
	o := &orchestrator{
		tx:                tx,
		registry:          identity.NewRegistry(tx),
		progress:          progress,
		lookups:           make(map[string]matching.Lookup, len(matchedEntityTypes)),
		result:            &models.ImportResult{},
		accountIDs:        make(map[string]string),
		categoryIDs:       make(map[string]string),
		securityIDsByTick: make(map[string]string),
		securityIDsByName: make(map[string]string),
		priceIndex:        lots.NewPriceIndex(),
	}

	progress.SetStage("lookups")
	for _, entityType := range matchedEntityTypes {
		lookup, err := matching.BuildLookup(tx, entityType)
		if err != nil {
			return nil, err
		}
		o.lookups[entityType] = lookup
	}

	progress.SetStage("truncate")
	for _, table := range database.DomainTables {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return nil, fmt.Errorf("truncating %s: %w", table, err)
		}
	}

	progress.SetStage("entities")
	if err := o.importAccounts(data.Accounts); err != nil {
		return nil, err
	}
	if err := o.importCategories(data.Categories); err != nil {
		return nil, err
	}
	if err := o.importTags(data.Tags); err != nil {
		return nil, err
	}
	if err := o.importSecurities(data.Securities); err != nil {
		return nil, err
	}
	if err := o.importTransactions(data.Transactions); err != nil {
		return nil, err
	}
	if err := o.importPrices(data.Prices); err != nil {
		return nil, err
	}

	progress.SetStage("balances")
	if err := o.recomputeBalances(); err != nil {
		return nil, err
	}

	progress.SetStage("lots")
	if err := o.rebuildLots(); err != nil {
		return nil, err
	}

	progress.SetStage("orphans")
	if err := o.sweepOrphans(); err != nil {
		return nil, err
	}

	logger.L.Info("Import processed",
		"created", o.result.Counts.Created,
		"modified", o.result.Counts.Modified,
		"orphaned", o.result.Counts.Orphaned,
		"restored", o.result.Counts.Restored,
		"warnings", len(o.result.Warnings))
	return o.result, nil
}

// resolveIdentity pairs one incoming record with an existing identity via
// its signature, or mints a new one. The content fingerprint decides
// modified-detection for matched identities.
func (o *orchestrator) resolveIdentity(entityType, signature, fp string) (string, error) {
	if cand, ok := o.lookups[entityType].Take(signature); ok {
		return o.adoptMatch(entityType, cand, fp)
	}
	return o.mintIdentity(entityType, signature, fp)
}

func (o *orchestrator) record(changeType models.ChangeType, entityType, id string) {
	switch changeType {
	case models.ChangeCreated:
		o.result.Counts.Created++
	case models.ChangeModified:
		o.result.Counts.Modified++
	case models.ChangeOrphaned:
		o.result.Counts.Orphaned++
	case models.ChangeRestored:
		o.result.Counts.Restored++
	}
	o.result.Changes = append(o.result.Changes, models.EntityChange{
		StableID:   id,
		EntityType: entityType,
		Type:       changeType,
	})
}

func (o *orchestrator) warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	logger.L.Warn("Import warning", "detail", msg)
	o.result.Warnings = append(o.result.Warnings, msg)
}

// sweepOrphans marks every identity whose lookup queue still has unconsumed
// entries. Orphaning a transaction cascades to its splits: a split has no
// independent existence once its parent disappears.
func (o *orchestrator) sweepOrphans() error {
	orphaned := make(map[string]bool)

	for _, entityType := range matchedEntityTypes {
		for _, id := range o.lookups[entityType].UnmatchedIDs() {
			if err := o.orphanOnce(entityType, id, orphaned); err != nil {
				return err
			}
			if entityType == models.EntityTransaction {
				if err := o.orphanSplitsOf(id, orphaned); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (o *orchestrator) orphanOnce(entityType, id string, orphaned map[string]bool) error {
	if orphaned[id] {
		return nil
	}
	orphaned[id] = true

	// Already-orphaned identities stay orphaned silently; only the
	// transition is a change.
	var wasOrphaned bool
	err := o.tx.QueryRow(
		`SELECT orphaned_at IS NOT NULL FROM stable_identities WHERE id = ?`, id).Scan(&wasOrphaned)
	if err != nil {
		return fmt.Errorf("checking orphan state of %s: %w", id, err)
	}
	if err := o.registry.MarkOrphaned(id); err != nil {
		return err
	}
	if !wasOrphaned {
		o.record(models.ChangeOrphaned, entityType, id)
	}
	return nil
}

// orphanSplitsOf orphans every split identity whose signature is prefixed by
// the orphaned transaction's id.
func (o *orchestrator) orphanSplitsOf(transactionID string, orphaned map[string]bool) error {
	rows, err := o.tx.Query(
		`SELECT id FROM stable_identities WHERE entity_type = ? AND signature LIKE ? ORDER BY id`,
		models.EntitySplit, identity.SplitSignaturePrefix(transactionID)+"%")
	if err != nil {
		return fmt.Errorf("loading splits of %s: %w", transactionID, err)
	}
	defer rows.Close()

	var splitIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scanning split id: %w", err)
		}
		splitIDs = append(splitIDs, id)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating splits of %s: %w", transactionID, err)
	}

	for _, id := range splitIDs {
		if err := o.orphanOnce(models.EntitySplit, id, orphaned); err != nil {
			return err
		}
	}
	return nil
}
