package models

import "time"

// ImportData is the structured object handed over by a ledger-file parser.
// It is the full inbound contract of the import engine; parsers are thin and
// replaceable as long as they produce this shape.
type ImportData struct {
	Accounts     []AccountRecord
	Categories   []CategoryRecord
	Tags         []TagRecord
	Securities   []SecurityRecord
	Transactions []TransactionRecord
	Prices       []PriceRecord
}

type AccountRecord struct {
	Name        string
	Type        string
	Description string
}

type CategoryRecord struct {
	Name        string
	Description string
	Income      bool
}

type TagRecord struct {
	Name        string
	Description string
}

type SecurityRecord struct {
	Name   string
	Ticker string
	Type   string
}

// TransactionRecord carries one bank or investment transaction. Amount is a
// pointer because some opening-balance exports omit it; the engine defaults
// it to zero rather than failing.
type TransactionRecord struct {
	AccountName string
	Date        time.Time
	Amount      *float64
	Kind        TransactionKind
	Payee       string
	Memo        string
	Category    string
	Splits      []SplitRecord

	// Investment fields.
	Action       InvestmentAction
	SecurityName string
	Quantity     *float64
	Price        *float64
	Commission   *float64
}

type SplitRecord struct {
	Category string
	Amount   float64
	Memo     string
}

// PriceRecord is a quoted price line. SecurityKey is the ticker symbol as
// exported; resolution falls back to the security name.
type PriceRecord struct {
	SecurityKey string
	Date        time.Time
	Price       float64
}

// ChangeType classifies the effect of an import on one stable identity.
type ChangeType string

const (
	ChangeCreated  ChangeType = "created"
	ChangeModified ChangeType = "modified"
	ChangeOrphaned ChangeType = "orphaned"
	ChangeRestored ChangeType = "restored"
)

// ChangeCounts aggregates the per-identity effects of one import.
type ChangeCounts struct {
	Created  int `json:"created"`
	Modified int `json:"modified"`
	Orphaned int `json:"orphaned"`
	Restored int `json:"restored"`
}

// EntityChange is one itemized identity-level effect of an import.
type EntityChange struct {
	StableID   string     `json:"stable_id"`
	EntityType string     `json:"entity_type"`
	Type       ChangeType `json:"type"`
}

// ImportResult is what ProcessImport hands back to callers.
type ImportResult struct {
	Counts   ChangeCounts
	Changes  []EntityChange
	Warnings []string
}
