package importer

import (
	"github.com/username/ledgervault/src/identity"
	"github.com/username/ledgervault/src/models"
	"github.com/username/ledgervault/src/utils"
)

func (o *orchestrator) importTransactions(records []models.TransactionRecord) error {
	o.progress.SetEntity(models.EntityTransaction, len(records))

	txStmt, err := o.tx.Prepare(`INSERT INTO transactions
		(id, account_id, seq, date, kind, amount, payee, memo, category_id, action, security_id, quantity, price, commission, running_balance)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`)
	if err != nil {
		return err
	}
	defer txStmt.Close()

	splitStmt, err := o.tx.Prepare(`INSERT INTO transaction_splits
		(id, transaction_id, category_id, amount, memo) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer splitStmt.Close()

	for _, rec := range records {
		accountID, ok := o.accountIDs[rec.AccountName]
		if !ok {
			o.warnf("transaction on %s references unknown account %q, skipped",
				utils.FormatStoreDate(rec.Date), rec.AccountName)
			o.progress.Advance()
			continue
		}

		// Opening-balance exports legitimately omit the amount.
		amount := 0.0
		if rec.Amount != nil {
			amount = *rec.Amount
		}

		var (
			signature  string
			securityID string
			categoryID string
		)
		if rec.Kind == models.KindInvestment {
			securityID = o.resolveSecurityRef(rec.SecurityName)
			if rec.SecurityName != "" && securityID == "" {
				o.warnf("transaction on %s references unknown security %q",
					utils.FormatStoreDate(rec.Date), rec.SecurityName)
			}
			signature = identity.InvestmentTransactionSignature(
				accountID, rec.Date, rec.Action, securityID, rec.Quantity, rec.Amount)
		} else {
			categoryID = o.resolveCategoryRef(rec.Category)
			signature = identity.BankTransactionSignature(accountID, rec.Date, amount, rec.Payee)
		}

		fp := fingerprint(
			string(rec.Kind),
			utils.FormatStoreDate(rec.Date),
			rec.Payee,
			rec.Memo,
			categoryID,
			utils.FormatAmount(amount),
			rec.Action.String(),
			securityID,
			optionalField(rec.Quantity),
			optionalField(rec.Price),
			optionalField(rec.Commission),
		)
		id, err := o.resolveIdentity(models.EntityTransaction, signature, fp)
		if err != nil {
			return err
		}

		o.seq++
		if _, err := txStmt.Exec(
			id, accountID, o.seq, utils.FormatStoreDate(rec.Date), string(rec.Kind),
			amount, rec.Payee, rec.Memo, nullable(categoryID), nullable(rec.Action.String()),
			nullable(securityID), rec.Quantity, rec.Price, rec.Commission); err != nil {
			return err
		}

		o.insertedTxs = append(o.insertedTxs, models.Transaction{
			ID:         id,
			AccountID:  accountID,
			Seq:        o.seq,
			Date:       rec.Date,
			Kind:       rec.Kind,
			Amount:     amount,
			Payee:      rec.Payee,
			Memo:       rec.Memo,
			CategoryID: categoryID,
			Action:     rec.Action,
			SecurityID: securityID,
			Quantity:   rec.Quantity,
			Price:      rec.Price,
			Commission: rec.Commission,
		})

		for _, split := range rec.Splits {
			splitCategoryID := o.resolveCategoryRef(split.Category)
			splitID, err := o.resolveIdentity(models.EntitySplit,
				identity.SplitSignature(id, splitCategoryID, split.Amount),
				fingerprint(splitCategoryID, utils.FormatAmount(split.Amount), split.Memo))
			if err != nil {
				return err
			}
			if _, err := splitStmt.Exec(splitID, id, nullable(splitCategoryID), split.Amount, split.Memo); err != nil {
				return err
			}
		}
		o.progress.Advance()
	}
	return nil
}

func optionalField(v *float64) string {
	if v == nil {
		return ""
	}
	return utils.FormatAmount(*v)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
