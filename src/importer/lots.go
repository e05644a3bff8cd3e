package importer

import (
	"github.com/username/ledgervault/src/identity"
	"github.com/username/ledgervault/src/lots"
	"github.com/username/ledgervault/src/models"
	"github.com/username/ledgervault/src/utils"
)

// rebuildLots replays the freshly imported investment transactions through
// the lot engine and persists the derived lots and allocations under their
// own stable identities, so lot ids survive reimports too.
func (o *orchestrator) rebuildLots() error {
	var investTxs []models.Transaction
	for _, t := range o.insertedTxs {
		if t.Kind == models.KindInvestment {
			investTxs = append(investTxs, t)
		}
	}

	replayed := lots.Replay(investTxs, o.priceIndex)
	o.result.Warnings = append(o.result.Warnings, replayed.Warnings...)

	lotStmt, err := o.tx.Prepare(`INSERT INTO lots
		(id, account_id, security_id, open_date, quantity, remaining_quantity, cost_basis, closed_date, open_transaction_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer lotStmt.Close()

	o.progress.SetEntity(models.EntityLot, len(replayed.Lots))
	lotIDs := make(map[*lots.Lot]string, len(replayed.Lots))
	for _, lot := range replayed.Lots {
		closedDate := ""
		if lot.ClosedDate != nil {
			closedDate = utils.FormatStoreDate(*lot.ClosedDate)
		}
		id, err := o.resolveIdentity(models.EntityLot,
			identity.LotSignature(lot.SecurityID, lot.AccountID, lot.OpenDate, lot.OpenTransactionID),
			fingerprint(
				utils.FormatAmount(lot.Quantity),
				utils.FormatAmount(lot.Remaining),
				utils.FormatAmount(lot.CostBasis),
				closedDate,
			))
		if err != nil {
			return err
		}
		if _, err := lotStmt.Exec(
			id, lot.AccountID, lot.SecurityID, utils.FormatStoreDate(lot.OpenDate),
			lot.Quantity, lot.Remaining, lot.CostBasis, nullable(closedDate),
			lot.OpenTransactionID); err != nil {
			return err
		}
		lotIDs[lot] = id
		o.progress.Advance()
	}

	allocStmt, err := o.tx.Prepare(`INSERT INTO lot_allocations
		(id, lot_id, transaction_id, shares_allocated, cost_basis_allocated, date)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer allocStmt.Close()

	o.progress.SetEntity(models.EntityLotAllocation, len(replayed.Allocations))
	for _, alloc := range replayed.Allocations {
		lotID := lotIDs[alloc.Lot]
		id, err := o.resolveIdentity(models.EntityLotAllocation,
			identity.LotAllocationSignature(lotID, alloc.TransactionID),
			fingerprint(
				utils.FormatAmount(alloc.Shares),
				utils.FormatAmount(alloc.CostBasis),
				utils.FormatStoreDate(alloc.Date),
			))
		if err != nil {
			return err
		}
		if _, err := allocStmt.Exec(
			id, lotID, alloc.TransactionID, alloc.Shares, alloc.CostBasis,
			utils.FormatStoreDate(alloc.Date)); err != nil {
			return err
		}
		o.progress.Advance()
	}
	return nil
}
