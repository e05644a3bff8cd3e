package utils

import (
	"fmt"
	"strings"
	"time"
)

// StoreDateFormat is the canonical date layout for every persisted date column.
const StoreDateFormat = "2006-01-02"

// qifDateLayouts covers the date spellings seen in ledger exports, oldest
// Quicken style first ("1/2'06" means 2006, "1/2/98" means 1998).
var qifDateLayouts = []string{
	"2006-01-02",
	"1/2/2006",
	"01/02/2006",
	"1/2/06",
	"1/ 2/06",
}

// ParseLedgerDate parses a date from a ledger export line.
func ParseLedgerDate(dateStr string) (time.Time, error) {
	s := strings.TrimSpace(dateStr)
	// Quicken writes post-2000 years with an apostrophe separator.
	s = strings.Replace(s, "'", "/", 1)
	for _, layout := range qifDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", dateStr)
}

// FormatStoreDate renders a date the way it is persisted and compared.
func FormatStoreDate(t time.Time) string {
	return t.Format(StoreDateFormat)
}

// ParseStoreDate parses a persisted date column value.
func ParseStoreDate(s string) (time.Time, error) {
	return time.Parse(StoreDateFormat, s)
}
