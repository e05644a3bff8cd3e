package database

import (
	"database/sql"
	"fmt"

	"github.com/username/ledgervault/src/logger"
	_ "modernc.org/sqlite"
)

// Open opens (or creates) the sqlite store at databasePath and ensures the
// schema exists. The store is single-writer; callers serialize imports.
func Open(databasePath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", databasePath, err)
	}
	// One import is one sequential pass; a second connection would only
	// fight sqlite's writer lock.
	db.SetMaxOpenConns(1)

	if err := EnsureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	logger.L.Debug("Database tables ensured/created.", "databasePath", databasePath)
	return db, nil
}

// EnsureSchema creates every table the import engine persists to.
func EnsureSchema(db *sql.DB) error {
	createTableStatement := `
	CREATE TABLE IF NOT EXISTS stable_identities (
		id TEXT PRIMARY KEY,
		entity_type TEXT NOT NULL,
		signature TEXT NOT NULL,
		fingerprint TEXT NOT NULL DEFAULT '',
		orphaned_at TIMESTAMP,
		last_modified_at TIMESTAMP,
		acknowledged_at TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_stable_identities_type_signature
		ON stable_identities(entity_type, signature);

	CREATE TABLE IF NOT EXISTS id_counters (
		entity_type TEXT PRIMARY KEY,
		counter INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT,
		description TEXT
	);

	CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		income BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE TABLE IF NOT EXISTS tags (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT
	);

	CREATE TABLE IF NOT EXISTS securities (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		ticker TEXT,
		type TEXT
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		date TEXT NOT NULL,
		kind TEXT NOT NULL,
		amount REAL NOT NULL DEFAULT 0,
		payee TEXT,
		memo TEXT,
		category_id TEXT,
		action TEXT,
		security_id TEXT,
		quantity REAL,
		price REAL,
		commission REAL,
		running_balance REAL NOT NULL DEFAULT 0,
		FOREIGN KEY(account_id) REFERENCES accounts(id)
	);
	CREATE INDEX IF NOT EXISTS idx_transactions_account_date
		ON transactions(account_id, date, seq);

	CREATE TABLE IF NOT EXISTS transaction_splits (
		id TEXT PRIMARY KEY,
		transaction_id TEXT NOT NULL,
		category_id TEXT,
		amount REAL NOT NULL,
		memo TEXT,
		FOREIGN KEY(transaction_id) REFERENCES transactions(id)
	);

	CREATE TABLE IF NOT EXISTS prices (
		id TEXT PRIMARY KEY,
		security_id TEXT NOT NULL,
		date TEXT NOT NULL,
		price REAL NOT NULL,
		FOREIGN KEY(security_id) REFERENCES securities(id)
	);
	CREATE INDEX IF NOT EXISTS idx_prices_security_date
		ON prices(security_id, date);

	CREATE TABLE IF NOT EXISTS lots (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		security_id TEXT NOT NULL,
		open_date TEXT NOT NULL,
		quantity REAL NOT NULL,
		remaining_quantity REAL NOT NULL,
		cost_basis REAL NOT NULL,
		closed_date TEXT,
		open_transaction_id TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS lot_allocations (
		id TEXT PRIMARY KEY,
		lot_id TEXT NOT NULL,
		transaction_id TEXT NOT NULL,
		shares_allocated REAL NOT NULL,
		cost_basis_allocated REAL NOT NULL,
		date TEXT NOT NULL,
		FOREIGN KEY(lot_id) REFERENCES lots(id)
	);

	CREATE TABLE IF NOT EXISTS import_history (
		id TEXT PRIMARY KEY,
		created_at TIMESTAMP NOT NULL,
		source_hash TEXT NOT NULL,
		change_counts TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS entity_changes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		import_id TEXT NOT NULL,
		stable_id TEXT NOT NULL,
		change_type TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		FOREIGN KEY(import_id) REFERENCES import_history(id)
	);
	`

	if _, err := db.Exec(createTableStatement); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// DomainTables lists every table whose rows are replaced wholesale on each
// import. stable_identities, id_counters and the history tables persist.
var DomainTables = []string{
	"accounts",
	"categories",
	"tags",
	"securities",
	"transactions",
	"transaction_splits",
	"prices",
	"lots",
	"lot_allocations",
}
