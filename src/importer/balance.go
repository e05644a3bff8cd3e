package importer

import (
	"sort"

	"github.com/username/ledgervault/src/models"
)

// recomputeBalances rebuilds each transaction's running balance as an
// ordered cumulative sum per account over (date, insertion order). Bank
// transactions always contribute their signed amount; investment
// transactions contribute only for cash-impacting actions.
func (o *orchestrator) recomputeBalances() error {
	byAccount := make(map[string][]*models.Transaction)
	for i := range o.insertedTxs {
		t := &o.insertedTxs[i]
		byAccount[t.AccountID] = append(byAccount[t.AccountID], t)
	}

	stmt, err := o.tx.Prepare(`UPDATE transactions SET running_balance = ? WHERE id = ?`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, txs := range byAccount {
		sort.SliceStable(txs, func(i, j int) bool {
			if !txs[i].Date.Equal(txs[j].Date) {
				return txs[i].Date.Before(txs[j].Date)
			}
			return txs[i].Seq < txs[j].Seq
		})

		balance := 0.0
		for _, t := range txs {
			switch t.Kind {
			case models.KindBank:
				balance += t.Amount
			case models.KindInvestment:
				if t.Action.CashImpacting() {
					balance += t.Amount
				}
			}
			t.RunningBalance = balance
			if _, err := stmt.Exec(balance, t.ID); err != nil {
				return err
			}
		}
	}
	return nil
}
