package importer

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/ledgervault/src/database"
	"github.com/username/ledgervault/src/models"
)

func openTestStore(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func runImport(t *testing.T, db *sql.DB, data *models.ImportData) *models.ImportResult {
	t.Helper()
	tx, err := db.Begin()
	require.NoError(t, err)
	result, err := ProcessImport(tx, data, nil)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	return result
}

func amt(v float64) *float64 { return &v }

func date(d int) time.Time {
	return time.Date(2024, time.February, d, 0, 0, 0, 0, time.UTC)
}

func bankTx(account string, d time.Time, amount float64, payee string) models.TransactionRecord {
	return models.TransactionRecord{
		AccountName: account,
		Date:        d,
		Amount:      amt(amount),
		Kind:        models.KindBank,
		Payee:       payee,
	}
}

func baseData() *models.ImportData {
	return &models.ImportData{
		Accounts: []models.AccountRecord{
			{Name: "Checking", Type: "Bank"},
		},
		Categories: []models.CategoryRecord{
			{Name: "Groceries"},
			{Name: "Salary", Income: true},
		},
		Transactions: []models.TransactionRecord{
			bankTx("Checking", date(1), 1000, "Employer"),
			bankTx("Checking", date(2), -55.25, "Corner Store"),
		},
	}
}

func txIDBySignature(t *testing.T, db *sql.DB, signature string) string {
	t.Helper()
	var id string
	err := db.QueryRow(
		`SELECT id FROM stable_identities WHERE entity_type = ? AND signature = ?`,
		models.EntityTransaction, signature).Scan(&id)
	require.NoError(t, err)
	return id
}

func TestReimportIsIdempotent(t *testing.T) {
	db := openTestStore(t)

	first := runImport(t, db, baseData())
	assert.Equal(t, 5, first.Counts.Created) // 1 account, 2 categories, 2 transactions
	assert.Zero(t, first.Counts.Modified)
	assert.Zero(t, first.Counts.Orphaned)

	second := runImport(t, db, baseData())
	assert.Equal(t, models.ChangeCounts{}, second.Counts)
	assert.Empty(t, second.Changes)
}

func TestIdentityStableAcrossReimport(t *testing.T) {
	db := openTestStore(t)
	runImport(t, db, baseData())

	var before []string
	rows, err := db.Query(`SELECT id FROM stable_identities ORDER BY id`)
	require.NoError(t, err)
	for rows.Next() {
		var id string
		require.NoError(t, rows.Scan(&id))
		before = append(before, id)
	}
	require.NoError(t, rows.Err())
	rows.Close()

	runImport(t, db, baseData())

	var after []string
	rows, err = db.Query(`SELECT id FROM stable_identities ORDER BY id`)
	require.NoError(t, err)
	for rows.Next() {
		var id string
		require.NoError(t, rows.Scan(&id))
		after = append(after, id)
	}
	require.NoError(t, rows.Err())
	rows.Close()

	assert.Equal(t, before, after)
}

func TestModifiedDetectionKeepsID(t *testing.T) {
	db := openTestStore(t)
	runImport(t, db, baseData())

	// The memo participates in the fingerprint but not the signature, so the
	// identity matches and only the content differs.
	data := baseData()
	data.Transactions[1].Memo = "weekly shop"
	result := runImport(t, db, data)

	assert.Equal(t, 1, result.Counts.Modified)
	assert.Zero(t, result.Counts.Created)
	assert.Zero(t, result.Counts.Orphaned)
	require.Len(t, result.Changes, 1)
	assert.Equal(t, models.ChangeModified, result.Changes[0].Type)
	assert.Equal(t, models.EntityTransaction, result.Changes[0].EntityType)

	// Unchanged on the next pass.
	again := runImport(t, db, data)
	assert.Equal(t, models.ChangeCounts{}, again.Counts)
}

func TestOrphanAndRestoreRoundTrip(t *testing.T) {
	db := openTestStore(t)
	runImport(t, db, baseData())

	full := baseData()
	groceriesSig := "ACC-000001|2024-02-02|-55.25|corner store"
	originalID := txIDBySignature(t, db, groceriesSig)

	// Drop the grocery transaction.
	trimmed := baseData()
	trimmed.Transactions = trimmed.Transactions[:1]
	result := runImport(t, db, trimmed)
	assert.Equal(t, 1, result.Counts.Orphaned)

	var orphanedAt sql.NullString
	err := db.QueryRow(`SELECT orphaned_at FROM stable_identities WHERE id = ?`, originalID).Scan(&orphanedAt)
	require.NoError(t, err)
	assert.True(t, orphanedAt.Valid)

	// Identity survives even though the row is gone.
	var rowCount int
	err = db.QueryRow(`SELECT COUNT(*) FROM transactions WHERE id = ?`, originalID).Scan(&rowCount)
	require.NoError(t, err)
	assert.Zero(t, rowCount)

	// Orphaned stays orphaned without being recounted.
	again := runImport(t, db, trimmed)
	assert.Equal(t, models.ChangeCounts{}, again.Counts)

	// Reappearing content restores the original id.
	restored := runImport(t, db, full)
	assert.Equal(t, 1, restored.Counts.Restored)
	assert.Zero(t, restored.Counts.Created)
	assert.Equal(t, originalID, txIDBySignature(t, db, groceriesSig))

	err = db.QueryRow(`SELECT orphaned_at FROM stable_identities WHERE id = ?`, originalID).Scan(&orphanedAt)
	require.NoError(t, err)
	assert.False(t, orphanedAt.Valid)
}

func TestOrphaningTransactionCascadesToSplits(t *testing.T) {
	db := openTestStore(t)

	withSplits := baseData()
	withSplits.Transactions = append(withSplits.Transactions, models.TransactionRecord{
		AccountName: "Checking",
		Date:        date(3),
		Amount:      amt(-80),
		Kind:        models.KindBank,
		Payee:       "Supermarket",
		Category:    "--Split--",
		Splits: []models.SplitRecord{
			{Category: "Groceries", Amount: -60},
			{Category: "Salary", Amount: -20},
		},
	})
	first := runImport(t, db, withSplits)
	assert.Equal(t, 8, first.Counts.Created) // +1 transaction, +2 splits over the base 5

	result := runImport(t, db, baseData())
	assert.Equal(t, 3, result.Counts.Orphaned)

	var splitOrphans int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM stable_identities WHERE entity_type = ? AND orphaned_at IS NOT NULL`,
		models.EntitySplit).Scan(&splitOrphans)
	require.NoError(t, err)
	assert.Equal(t, 2, splitOrphans)
}

func TestDuplicateTransactionsPairFungibly(t *testing.T) {
	db := openTestStore(t)

	dup := bankTx("Checking", date(5), -4.5, "Coffee")
	data := baseData()
	data.Transactions = append(data.Transactions, dup, dup, dup)
	runImport(t, db, data)

	// Next export has only two of the three duplicates.
	data = baseData()
	data.Transactions = append(data.Transactions, dup, dup)
	result := runImport(t, db, data)

	assert.Equal(t, 1, result.Counts.Orphaned)
	assert.Zero(t, result.Counts.Created)

	// The highest-numbered duplicate is the one orphaned.
	var orphanID string
	err := db.QueryRow(
		`SELECT id FROM stable_identities WHERE orphaned_at IS NOT NULL`).Scan(&orphanID)
	require.NoError(t, err)

	var maxID string
	err = db.QueryRow(
		`SELECT MAX(id) FROM stable_identities WHERE entity_type = ?`,
		models.EntityTransaction).Scan(&maxID)
	require.NoError(t, err)
	assert.Equal(t, maxID, orphanID)
}

func TestUnknownAccountSkipsWithWarning(t *testing.T) {
	db := openTestStore(t)

	data := baseData()
	data.Transactions = append(data.Transactions, bankTx("Nonexistent", date(9), -10, "Ghost"))
	result := runImport(t, db, data)

	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "unknown account")

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM transactions`).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSpecialCategoryMarkersNeverBecomeRows(t *testing.T) {
	db := openTestStore(t)

	data := baseData()
	data.Categories = append(data.Categories,
		models.CategoryRecord{Name: "[Savings]"},
		models.CategoryRecord{Name: "_RlzdGain"},
		models.CategoryRecord{Name: "--Split--"},
	)
	runImport(t, db, data)

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM categories`).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRunningBalanceHonorsCashImpact(t *testing.T) {
	db := openTestStore(t)

	data := &models.ImportData{
		Accounts: []models.AccountRecord{{Name: "Brokerage", Type: "Invst"}},
		Securities: []models.SecurityRecord{
			{Name: "Acme Corp", Ticker: "ACME", Type: "Stock"},
		},
		Transactions: []models.TransactionRecord{
			{
				AccountName: "Brokerage", Date: date(1), Amount: amt(1000),
				Kind: models.KindInvestment, Action: models.ActionXIn,
			},
			{
				AccountName: "Brokerage", Date: date(2), Amount: amt(-400),
				Kind: models.KindInvestment, Action: models.ActionBuy,
				SecurityName: "ACME", Quantity: amt(10),
			},
			{
				// Share-only movement, no cash effect.
				AccountName: "Brokerage", Date: date(3), Amount: amt(999),
				Kind: models.KindInvestment, Action: models.ActionShrsIn,
				SecurityName: "ACME", Quantity: amt(5),
			},
			{
				AccountName: "Brokerage", Date: date(4), Amount: amt(25),
				Kind: models.KindInvestment, Action: models.ActionDiv,
				SecurityName: "ACME",
			},
		},
	}
	runImport(t, db, data)

	rows, err := db.Query(`SELECT running_balance FROM transactions ORDER BY date, seq`)
	require.NoError(t, err)
	defer rows.Close()

	var balances []float64
	for rows.Next() {
		var b float64
		require.NoError(t, rows.Scan(&b))
		balances = append(balances, b)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []float64{1000, 600, 600, 625}, balances)
}

func TestLotsPersistWithStableIdentities(t *testing.T) {
	db := openTestStore(t)

	data := &models.ImportData{
		Accounts:   []models.AccountRecord{{Name: "Brokerage", Type: "Invst"}},
		Securities: []models.SecurityRecord{{Name: "Acme Corp", Ticker: "ACME"}},
		Transactions: []models.TransactionRecord{
			{
				AccountName: "Brokerage", Date: date(1), Amount: amt(-500),
				Kind: models.KindInvestment, Action: models.ActionBuy,
				SecurityName: "ACME", Quantity: amt(10),
			},
			{
				AccountName: "Brokerage", Date: date(5), Amount: amt(300),
				Kind: models.KindInvestment, Action: models.ActionSell,
				SecurityName: "ACME", Quantity: amt(4),
			},
		},
	}
	runImport(t, db, data)

	var lotID string
	var remaining, basis float64
	err := db.QueryRow(`SELECT id, remaining_quantity, cost_basis FROM lots`).Scan(&lotID, &remaining, &basis)
	require.NoError(t, err)
	assert.InDelta(t, 6.0, remaining, 1e-9)
	assert.InDelta(t, 500.0, basis, 1e-9)

	var allocShares, allocBasis float64
	err = db.QueryRow(`SELECT shares_allocated, cost_basis_allocated FROM lot_allocations WHERE lot_id = ?`, lotID).Scan(&allocShares, &allocBasis)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, allocShares, 1e-9)
	assert.InDelta(t, 200.0, allocBasis, 1e-9)

	// Lot identity is stable on reimport.
	result := runImport(t, db, data)
	assert.Equal(t, models.ChangeCounts{}, result.Counts)

	var lotIDAgain string
	err = db.QueryRow(`SELECT id FROM lots`).Scan(&lotIDAgain)
	require.NoError(t, err)
	assert.Equal(t, lotID, lotIDAgain)
}

func TestSecurityMatchedByNameWhenTickerAppears(t *testing.T) {
	db := openTestStore(t)

	noTicker := &models.ImportData{
		Securities: []models.SecurityRecord{{Name: "Acme Corp"}},
	}
	runImport(t, db, noTicker)

	var originalID string
	err := db.QueryRow(`SELECT id FROM stable_identities WHERE entity_type = ?`, models.EntitySecurity).Scan(&originalID)
	require.NoError(t, err)

	// Same security, now exported with a ticker: the name-fallback tier keeps
	// the identity, and the signature change counts as modified.
	withTicker := &models.ImportData{
		Securities: []models.SecurityRecord{{Name: "Acme Corp", Ticker: "ACME"}},
	}
	result := runImport(t, db, withTicker)
	assert.Equal(t, 1, result.Counts.Modified)
	assert.Zero(t, result.Counts.Created)

	var id string
	err = db.QueryRow(`SELECT id FROM securities`).Scan(&id)
	require.NoError(t, err)
	assert.Equal(t, originalID, id)
}

func TestUnknownPriceSecurityWarnsAndSkips(t *testing.T) {
	db := openTestStore(t)

	data := &models.ImportData{
		Prices: []models.PriceRecord{{SecurityKey: "GHOST", Date: date(1), Price: 12}},
	}
	result := runImport(t, db, data)

	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "unknown security")

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM prices`).Scan(&count)
	require.NoError(t, err)
	assert.Zero(t, count)
}
