// Package matching resolves "does this incoming record already exist?"
// against the stable-identity registry. Each entity kind gets a Lookup: a
// multimap from signature to a FIFO queue of available identities. Duplicate
// signatures are legal in ledger exports, so consumption is a pop — the
// first N incoming duplicates pair with the first N queued identities
// (fungible pairing), and anything left queued after a kind is processed is
// that kind's orphan set.
package matching

import (
	"database/sql"
	"fmt"
	"sort"
)

// Candidate is one existing identity available for pairing.
type Candidate struct {
	ID          string
	Orphaned    bool
	Fingerprint string
}

// Lookup maps signature to the FIFO queue of identities carrying it.
type Lookup map[string][]Candidate

func NewLookup() Lookup {
	return make(Lookup)
}

// Add queues a candidate under its signature.
func (l Lookup) Add(signature string, c Candidate) {
	l[signature] = append(l[signature], c)
}

// Take pops the first queued candidate for signature, or reports a miss.
func (l Lookup) Take(signature string) (Candidate, bool) {
	queue := l[signature]
	if len(queue) == 0 {
		return Candidate{}, false
	}
	c := queue[0]
	if len(queue) == 1 {
		delete(l, signature)
	} else {
		l[signature] = queue[1:]
	}
	return c, true
}

// UnmatchedIDs returns every identity still queued, in sorted order. After
// all incoming records of a kind have been matched, this is the orphan set.
func (l Lookup) UnmatchedIDs() []string {
	var ids []string
	for _, queue := range l {
		for _, c := range queue {
			ids = append(ids, c.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

// BuildLookup loads every identity of one entity type, orphaned ones
// included so that a reappearing signature restores its old id instead of
// minting a new one. Queue order follows id order, which makes fungible
// pairing deterministic across runs.
func BuildLookup(tx *sql.Tx, entityType string) (Lookup, error) {
	rows, err := tx.Query(
		`SELECT id, signature, fingerprint, orphaned_at IS NOT NULL
		 FROM stable_identities WHERE entity_type = ? ORDER BY id`, entityType)
	if err != nil {
		return nil, fmt.Errorf("loading %s identities: %w", entityType, err)
	}
	defer rows.Close()

	lookup := NewLookup()
	for rows.Next() {
		var (
			c         Candidate
			signature string
		)
		if err := rows.Scan(&c.ID, &signature, &c.Fingerprint, &c.Orphaned); err != nil {
			return nil, fmt.Errorf("scanning %s identity: %w", entityType, err)
		}
		lookup.Add(signature, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s identities: %w", entityType, err)
	}
	return lookup, nil
}
