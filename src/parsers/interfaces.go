package parsers

import (
	"io"

	"github.com/username/ledgervault/src/models"
)

// Parser turns one ledger export stream into the structured ImportData the
// import engine consumes. Parsers are deliberately thin and mechanical; all
// reconciliation semantics live behind the ImportData contract.
type Parser interface {
	Parse(file io.Reader) (*models.ImportData, error)
}
