// Package qif is a line-oriented parser for Quicken Interchange Format
// ledger exports. It is purely mechanical: it accumulates typed records and
// leaves every reconciliation decision to the import engine.
package qif

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/username/ledgervault/src/models"
	"github.com/username/ledgervault/src/utils"
)

type section int

const (
	sectionNone section = iota
	sectionAccount
	sectionBank
	sectionInvestment
	sectionCategory
	sectionTag
	sectionSecurity
	sectionPrices
)

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// fallbackAccountName is used when transactions appear before any !Account
// header, which old single-account exports do.
const fallbackAccountName = "Unspecified Account"

type parseState struct {
	data    models.ImportData
	section section

	currentAccount string
	seenAccounts   map[string]bool
	seenCategories map[string]bool

	account  models.AccountRecord
	category models.CategoryRecord
	tag      models.TagRecord
	security models.SecurityRecord
	txn      models.TransactionRecord
	split    *models.SplitRecord
}

func (p *Parser) Parse(file io.Reader) (*models.ImportData, error) {
	st := &parseState{
		seenAccounts:   make(map[string]bool),
		seenCategories: make(map[string]bool),
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "!") {
			st.switchSection(line)
			continue
		}
		if err := st.consume(line); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ledger export: %w", err)
	}

	st.collectReferencedCategories()
	return &st.data, nil
}

func (st *parseState) switchSection(header string) {
	switch strings.ToLower(strings.TrimSpace(header)) {
	case "!account":
		st.section = sectionAccount
	case "!type:bank", "!type:cash", "!type:ccard", "!type:oth a", "!type:oth l":
		st.section = sectionBank
	case "!type:invst":
		st.section = sectionInvestment
	case "!type:cat":
		st.section = sectionCategory
	case "!type:tag":
		st.section = sectionTag
	case "!type:security":
		st.section = sectionSecurity
	case "!type:prices":
		st.section = sectionPrices
	default:
		// Option toggles and unknown headers carry no records.
		st.section = sectionNone
	}
	st.resetRecord()
}

func (st *parseState) consume(line string) error {
	switch st.section {
	case sectionAccount:
		return st.consumeAccount(line)
	case sectionBank:
		return st.consumeBank(line)
	case sectionInvestment:
		return st.consumeInvestment(line)
	case sectionCategory:
		return st.consumeCategory(line)
	case sectionTag:
		return st.consumeTag(line)
	case sectionSecurity:
		return st.consumeSecurity(line)
	case sectionPrices:
		return st.consumePrice(line)
	}
	return nil
}

func (st *parseState) consumeAccount(line string) error {
	code, value := splitLine(line)
	switch code {
	case 'N':
		st.account.Name = value
	case 'T':
		st.account.Type = value
	case 'D':
		st.account.Description = value
	case '^':
		if st.account.Name != "" {
			st.addAccount(st.account)
			st.currentAccount = st.account.Name
		}
		st.account = models.AccountRecord{}
	}
	return nil
}

func (st *parseState) consumeBank(line string) error {
	code, value := splitLine(line)
	switch code {
	case 'D':
		date, err := utils.ParseLedgerDate(value)
		if err != nil {
			return err
		}
		st.txn.Date = date
	case 'T', 'U':
		amount, err := parseAmount(value)
		if err != nil {
			return err
		}
		st.txn.Amount = &amount
	case 'P':
		st.txn.Payee = value
	case 'M':
		st.txn.Memo = value
	case 'L':
		st.txn.Category = value
	case 'S':
		st.txn.Splits = append(st.txn.Splits, models.SplitRecord{Category: value})
		st.split = &st.txn.Splits[len(st.txn.Splits)-1]
	case 'E':
		if st.split != nil {
			st.split.Memo = value
		}
	case '$':
		if st.split != nil {
			amount, err := parseAmount(value)
			if err != nil {
				return err
			}
			st.split.Amount = amount
		}
	case '^':
		st.finishTransaction(models.KindBank)
	}
	return nil
}

func (st *parseState) consumeInvestment(line string) error {
	code, value := splitLine(line)
	switch code {
	case 'D':
		date, err := utils.ParseLedgerDate(value)
		if err != nil {
			return err
		}
		st.txn.Date = date
	case 'N':
		action, err := models.ParseInvestmentAction(value)
		if err != nil {
			return err
		}
		st.txn.Action = action
	case 'Y':
		st.txn.SecurityName = value
	case 'Q':
		quantity, err := parseAmount(value)
		if err != nil {
			return err
		}
		st.txn.Quantity = &quantity
	case 'I':
		price, err := parseAmount(value)
		if err != nil {
			return err
		}
		st.txn.Price = &price
	case 'T', 'U':
		amount, err := parseAmount(value)
		if err != nil {
			return err
		}
		st.txn.Amount = &amount
	case 'O':
		commission, err := parseAmount(value)
		if err != nil {
			return err
		}
		st.txn.Commission = &commission
	case 'P':
		st.txn.Payee = value
	case 'M':
		st.txn.Memo = value
	case 'L':
		st.txn.Category = value
	case '^':
		st.finishTransaction(models.KindInvestment)
	}
	return nil
}

func (st *parseState) consumeCategory(line string) error {
	code, value := splitLine(line)
	switch code {
	case 'N':
		st.category.Name = value
	case 'D':
		st.category.Description = value
	case 'I':
		st.category.Income = true
	case 'E':
		st.category.Income = false
	case '^':
		if st.category.Name != "" && !st.seenCategories[st.category.Name] {
			st.seenCategories[st.category.Name] = true
			st.data.Categories = append(st.data.Categories, st.category)
		}
		st.category = models.CategoryRecord{}
	}
	return nil
}

func (st *parseState) consumeTag(line string) error {
	code, value := splitLine(line)
	switch code {
	case 'N':
		st.tag.Name = value
	case 'D':
		st.tag.Description = value
	case '^':
		if st.tag.Name != "" {
			st.data.Tags = append(st.data.Tags, st.tag)
		}
		st.tag = models.TagRecord{}
	}
	return nil
}

func (st *parseState) consumeSecurity(line string) error {
	code, value := splitLine(line)
	switch code {
	case 'N':
		st.security.Name = value
	case 'S':
		st.security.Ticker = value
	case 'T':
		st.security.Type = value
	case '^':
		if st.security.Name != "" {
			st.data.Securities = append(st.data.Securities, st.security)
		}
		st.security = models.SecurityRecord{}
	}
	return nil
}

// consumePrice reads quoted price lines of the form "SYM",25.50,"1/15'07".
func (st *parseState) consumePrice(line string) error {
	if line == "^" {
		return nil
	}
	parts := strings.Split(line, ",")
	if len(parts) < 3 {
		return fmt.Errorf("malformed price line %q", line)
	}
	symbol := strings.Trim(parts[0], `" `)
	price, err := parseAmount(strings.TrimSpace(parts[1]))
	if err != nil {
		return err
	}
	date, err := utils.ParseLedgerDate(strings.Trim(parts[2], `" `))
	if err != nil {
		return err
	}
	st.data.Prices = append(st.data.Prices, models.PriceRecord{
		SecurityKey: symbol,
		Date:        date,
		Price:       price,
	})
	return nil
}

func (st *parseState) finishTransaction(kind models.TransactionKind) {
	st.txn.Kind = kind
	st.txn.AccountName = st.currentAccount
	if st.txn.AccountName == "" {
		st.txn.AccountName = fallbackAccountName
		st.addAccount(models.AccountRecord{Name: fallbackAccountName})
	}
	st.data.Transactions = append(st.data.Transactions, st.txn)
	st.txn = models.TransactionRecord{}
	st.split = nil
}

func (st *parseState) addAccount(rec models.AccountRecord) {
	if st.seenAccounts[rec.Name] {
		return
	}
	st.seenAccounts[rec.Name] = true
	st.data.Accounts = append(st.data.Accounts, rec)
}

// collectReferencedCategories appends a bare category record for every
// category named on a transaction or split but missing from the category
// list. Special markers (transfers, pseudo-categories, split placeholders)
// are never promoted to categories.
func (st *parseState) collectReferencedCategories() {
	addName := func(name string) {
		if name == "" || st.seenCategories[name] {
			return
		}
		if strings.HasPrefix(name, "[") || strings.HasPrefix(name, "_") || name == "--Split--" {
			return
		}
		st.seenCategories[name] = true
		st.data.Categories = append(st.data.Categories, models.CategoryRecord{Name: name})
	}
	for _, txn := range st.data.Transactions {
		addName(txn.Category)
		for _, split := range txn.Splits {
			addName(split.Category)
		}
	}
}

func (st *parseState) resetRecord() {
	st.account = models.AccountRecord{}
	st.category = models.CategoryRecord{}
	st.tag = models.TagRecord{}
	st.security = models.SecurityRecord{}
	st.txn = models.TransactionRecord{}
	st.split = nil
}

func splitLine(line string) (byte, string) {
	return line[0], strings.TrimSpace(line[1:])
}

func parseAmount(value string) (float64, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(value), ",", "")
	if cleaned == "" {
		return 0, nil
	}
	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed amount %q", value)
	}
	return amount, nil
}
