package parsers

import (
	"fmt"

	"github.com/username/ledgervault/src/parsers/qif"
)

func GetParser(source string) (Parser, error) {
	switch source {
	case "qif":
		return qif.NewParser(), nil
	default:
		return nil, fmt.Errorf("no parser available for source: %s", source)
	}
}
