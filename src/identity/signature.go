package identity

import (
	"strings"
	"time"

	"github.com/username/ledgervault/src/models"
	"github.com/username/ledgervault/src/utils"
)

// Signatures are the sole cross-import correlation keys. They are pure
// functions of semantic content; two records with equal signatures are
// fungible as far as matching is concerned. Fields join with "|".

const sigSep = "|"

// AccountSignature, CategorySignature and TagSignature use the exact name.
func AccountSignature(name string) string  { return name }
func CategorySignature(name string) string { return name }
func TagSignature(name string) string      { return name }

// SecuritySignature prefers the ticker symbol; securities without one fall
// back to the normalized name.
func SecuritySignature(ticker, name string) string {
	if ticker != "" {
		return ticker
	}
	return utils.NormalizeName(name)
}

// SecurityNameSignature is the fallback key used by two-tier matching when a
// ticker lookup misses.
func SecurityNameSignature(name string) string {
	return utils.NormalizeName(name)
}

// BankTransactionSignature keys a bank transaction on account, date, amount
// and normalized payee.
func BankTransactionSignature(accountID string, date time.Time, amount float64, payee string) string {
	return strings.Join([]string{
		accountID,
		utils.FormatStoreDate(date),
		utils.FormatAmount(amount),
		utils.NormalizeName(payee),
	}, sigSep)
}

// InvestmentTransactionSignature keys an investment transaction on account,
// date, action, security and the quantity/amount when present.
func InvestmentTransactionSignature(accountID string, date time.Time, action models.InvestmentAction, securityID string, quantity, amount *float64) string {
	return strings.Join([]string{
		accountID,
		utils.FormatStoreDate(date),
		action.String(),
		securityID,
		optionalAmount(quantity),
		optionalAmount(amount),
	}, sigSep)
}

func SplitSignature(transactionID, categoryID string, amount float64) string {
	return strings.Join([]string{transactionID, categoryID, utils.FormatAmount(amount)}, sigSep)
}

// SplitSignaturePrefix is the prefix shared by every split of one parent
// transaction; the orphan cascade matches on it.
func SplitSignaturePrefix(transactionID string) string {
	return transactionID + sigSep
}

func PriceSignature(securityID string, date time.Time) string {
	return strings.Join([]string{securityID, utils.FormatStoreDate(date)}, sigSep)
}

func LotSignature(securityID, accountID string, openDate time.Time, openTransactionID string) string {
	return strings.Join([]string{securityID, accountID, utils.FormatStoreDate(openDate), openTransactionID}, sigSep)
}

func LotAllocationSignature(lotID, transactionID string) string {
	return strings.Join([]string{lotID, transactionID}, sigSep)
}

func optionalAmount(v *float64) string {
	if v == nil {
		return ""
	}
	return utils.FormatAmount(*v)
}
