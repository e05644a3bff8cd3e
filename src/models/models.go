package models

import "time"

// Entity type names, used for stable-id minting and change accounting.
const (
	EntityAccount       = "account"
	EntityCategory      = "category"
	EntityTag           = "tag"
	EntitySecurity      = "security"
	EntityTransaction   = "transaction"
	EntitySplit         = "split"
	EntityPrice         = "price"
	EntityLot           = "lot"
	EntityLotAllocation = "lot_allocation"
)

// TransactionKind discriminates bank and investment rows.
type TransactionKind string

const (
	KindBank       TransactionKind = "bank"
	KindInvestment TransactionKind = "investment"
)

// StableIdentity is the permanent record of one logical entity. Domain rows
// are replaced wholesale on every import; this row is what survives.
type StableIdentity struct {
	ID             string
	EntityType     string
	Signature      string
	Fingerprint    string
	OrphanedAt     *time.Time
	LastModifiedAt *time.Time
	AcknowledgedAt *time.Time
}

type Account struct {
	ID          string
	Name        string
	Type        string
	Description string
}

type Category struct {
	ID          string
	Name        string
	Description string
	Income      bool
}

type Tag struct {
	ID          string
	Name        string
	Description string
}

type Security struct {
	ID     string
	Name   string
	Ticker string
	Type   string
}

// Transaction is a persisted bank or investment transaction. Quantity, Price
// and Commission are nil for bank rows and for investment rows that omit them.
type Transaction struct {
	ID             string
	AccountID      string
	Seq            int64 // insertion order within the import, tie-breaker for balances
	Date           time.Time
	Kind           TransactionKind
	Amount         float64
	Payee          string
	Memo           string
	CategoryID     string
	Action         InvestmentAction
	SecurityID     string
	Quantity       *float64
	Price          *float64
	Commission     *float64
	RunningBalance float64
}

type TransactionSplit struct {
	ID            string
	TransactionID string
	CategoryID    string
	Amount        float64
	Memo          string
}

type Price struct {
	ID         string
	SecurityID string
	Date       time.Time
	Price      float64
}

// Lot is one tranche of security ownership. Quantity and RemainingQuantity
// are negative for short positions; RemainingQuantity hits exactly 0 when
// the lot closes.
type Lot struct {
	ID                string
	AccountID         string
	SecurityID        string
	OpenDate          time.Time
	Quantity          float64
	RemainingQuantity float64
	CostBasis         float64
	ClosedDate        *time.Time
	OpenTransactionID string
}

// LotAllocation links one consuming transaction to one lot it drained,
// partially or fully. Immutable once written.
type LotAllocation struct {
	ID                 string
	LotID              string
	TransactionID      string
	SharesAllocated    float64
	CostBasisAllocated float64
	Date               time.Time
}

// ImportRecord is one row of the append-only import audit trail.
type ImportRecord struct {
	ID           string
	CreatedAt    time.Time
	SourceHash   string
	ChangeCounts ChangeCounts
}

type EntityChangeRecord struct {
	ImportID   string
	StableID   string
	ChangeType ChangeType
	EntityType string
}
