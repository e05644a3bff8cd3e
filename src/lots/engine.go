// Package lots rebuilds FIFO tax lots and their allocations from scratch by
// replaying every investment transaction in (date, id) order. The replay is
// pure and in-memory; the orchestrator persists the result. Rebuilding on
// every import is idempotent because matching resolves the same stable
// transaction ids each time.
package lots

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/username/ledgervault/src/models"
)

// QuantityEpsilon is the tolerance below which a share quantity counts as
// zero. A lot whose remaining quantity falls inside it is closed.
const QuantityEpsilon = 1e-10

// Lot is a working lot under construction. Quantity and Remaining are
// negative for short positions.
type Lot struct {
	AccountID         string
	SecurityID        string
	OpenDate          time.Time
	Quantity          float64
	Remaining         float64
	CostBasis         float64
	ClosedDate        *time.Time
	OpenTransactionID string
}

// Allocation records one consuming transaction draining part of one lot.
type Allocation struct {
	Lot           *Lot
	TransactionID string
	Shares        float64
	CostBasis     float64
	Date          time.Time
}

// Result is the full derived lot state for one import.
type Result struct {
	Lots        []*Lot
	Allocations []Allocation
	Warnings    []string
}

type engine struct {
	book   map[string][]*Lot // account|security -> lots in open order
	result *Result
	prices PriceIndex
}

// Replay rebuilds lot state from the given investment transactions. The
// caller passes every non-orphaned investment transaction of the import;
// ordering is normalized here.
func Replay(txs []models.Transaction, prices PriceIndex) *Result {
	sorted := make([]models.Transaction, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].ID < sorted[j].ID
	})

	e := &engine{
		book:   make(map[string][]*Lot),
		result: &Result{},
		prices: prices,
	}
	for i := range sorted {
		e.apply(&sorted[i])
	}
	return e.result
}

func (e *engine) apply(t *models.Transaction) {
	switch t.Action {
	case models.ActionBuy, models.ActionShrsIn:
		e.acquire(t)
	case models.ActionSell, models.ActionShrsOut:
		e.dispose(t, true)
	case models.ActionReinvDiv:
		e.reinvest(t)
	case models.ActionStkSplit:
		e.split(t)
	case models.ActionGrant, models.ActionVest:
		e.openLot(t, quantityOf(t), 0)
	case models.ActionExercise:
		// Exercising never oversells, so no short remainder.
		e.dispose(t, false)
	case models.ActionShtSell:
		e.openLot(t, -quantityOf(t), 0)
	case models.ActionCvrShrt:
		e.cover(t)
	case models.ActionNone, models.ActionDiv, models.ActionIntInc,
		models.ActionXIn, models.ActionXOut, models.ActionCash,
		models.ActionMiscInc, models.ActionMiscExp:
		// Cash-only and transfer actions have no lot effect.
	}
}

// acquire covers any open shorts first, then opens a long lot for the
// remainder.
func (e *engine) acquire(t *models.Transaction) {
	qty := quantityOf(t)
	if qty <= QuantityEpsilon {
		return
	}
	if t.SecurityID == "" {
		e.warnf("transaction %s: %s without a resolvable security, no lot effect", t.ID, t.Action)
		return
	}

	covered := e.reduce(t, qty, false)
	remainder := qty - covered
	if remainder <= QuantityEpsilon {
		return
	}

	basis := math.Abs(t.Amount)
	if basis == 0 && t.Price != nil {
		basis = *t.Price * remainder
	}
	e.openLot(t, remainder, basis)
}

// dispose closes long lots FIFO. When allowShort is set and the quantity
// exceeds the open long shares, the excess opens a short lot with zero cost
// basis until covered.
func (e *engine) dispose(t *models.Transaction, allowShort bool) {
	qty := quantityOf(t)
	if qty <= QuantityEpsilon {
		return
	}
	if t.SecurityID == "" {
		e.warnf("transaction %s: %s without a resolvable security, no lot effect", t.ID, t.Action)
		return
	}

	sold := e.reduce(t, qty, true)
	excess := qty - sold
	if allowShort && excess > QuantityEpsilon {
		e.openLot(t, -excess, 0)
	}
}

// reinvest opens a lot whose cost basis resolves by priority: explicit
// amount, then price x quantity, then the most recent stored price on or
// before the transaction date. With no resolvable basis the lot is skipped
// with a warning; the transaction itself is already imported.
func (e *engine) reinvest(t *models.Transaction) {
	qty := quantityOf(t)
	if qty <= QuantityEpsilon || t.SecurityID == "" {
		return
	}

	var basis float64
	switch {
	case t.Amount != 0:
		basis = math.Abs(t.Amount)
	case t.Price != nil && *t.Price > 0:
		basis = *t.Price * qty
	default:
		price, ok := e.prices.LatestOnOrBefore(t.SecurityID, t.Date)
		if !ok || price <= 0 {
			e.warnf("transaction %s: dividend reinvestment with no resolvable cost basis for %s, lot skipped", t.ID, t.SecurityID)
			return
		}
		basis = price * qty
	}
	e.openLot(t, qty, basis)
}

// split multiplies the share counts of every open lot for the security by
// declaredQuantity/10 (the ledger-export convention for split ratios),
// leaving cost basis untouched.
func (e *engine) split(t *models.Transaction) {
	qty := quantityOf(t)
	if qty <= QuantityEpsilon || t.SecurityID == "" {
		return
	}
	factor := qty / 10
	for _, lot := range e.book[bookKey(t.AccountID, t.SecurityID)] {
		if math.Abs(lot.Remaining) <= QuantityEpsilon {
			continue
		}
		lot.Quantity *= factor
		lot.Remaining *= factor
	}
}

func (e *engine) cover(t *models.Transaction) {
	qty := quantityOf(t)
	if qty <= QuantityEpsilon {
		return
	}
	if t.SecurityID == "" {
		e.warnf("transaction %s: %s without a resolvable security, no lot effect", t.ID, t.Action)
		return
	}
	e.reduce(t, qty, false)
}

func (e *engine) openLot(t *models.Transaction, quantity, costBasis float64) {
	if math.Abs(quantity) <= QuantityEpsilon || t.SecurityID == "" {
		return
	}
	lot := &Lot{
		AccountID:         t.AccountID,
		SecurityID:        t.SecurityID,
		OpenDate:          t.Date,
		Quantity:          quantity,
		Remaining:         quantity,
		CostBasis:         costBasis,
		OpenTransactionID: t.ID,
	}
	key := bookKey(t.AccountID, t.SecurityID)
	e.book[key] = append(e.book[key], lot)
	e.result.Lots = append(e.result.Lots, lot)
}

// reduce is the FIFO reduction shared by every closing path. It walks open
// lots oldest first, consumes min(remaining, needed) from each, prorates
// cost basis by consumed/original-quantity, records one allocation per lot
// touched and closes lots whose remainder falls inside the epsilon. When
// long is false the negative-sign (short) subset is reduced instead.
// Returns the total shares consumed.
func (e *engine) reduce(t *models.Transaction, shares float64, long bool) float64 {
	needed := shares
	for _, lot := range e.book[bookKey(t.AccountID, t.SecurityID)] {
		if needed <= QuantityEpsilon {
			break
		}
		open := lot.Remaining
		if !long {
			open = -open
		}
		if open <= QuantityEpsilon {
			continue
		}

		take := math.Min(open, needed)
		var basisPart float64
		if math.Abs(lot.Quantity) > QuantityEpsilon {
			basisPart = lot.CostBasis * (take / math.Abs(lot.Quantity))
		}

		if long {
			lot.Remaining -= take
		} else {
			lot.Remaining += take
		}
		if math.Abs(lot.Remaining) <= QuantityEpsilon {
			lot.Remaining = 0
			closed := t.Date
			lot.ClosedDate = &closed
		}

		e.result.Allocations = append(e.result.Allocations, Allocation{
			Lot:           lot,
			TransactionID: t.ID,
			Shares:        take,
			CostBasis:     basisPart,
			Date:          t.Date,
		})
		needed -= take
	}
	return shares - needed
}

func (e *engine) warnf(format string, args ...any) {
	e.result.Warnings = append(e.result.Warnings, fmt.Sprintf(format, args...))
}

func quantityOf(t *models.Transaction) float64 {
	if t.Quantity == nil {
		return 0
	}
	return *t.Quantity
}

func bookKey(accountID, securityID string) string {
	return accountID + "|" + securityID
}
