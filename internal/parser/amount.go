package parser

import (
	"strings"

	"github.com/shopspring/decimal"
)

// NormalizeAmount folds a debit column and a credit column into one signed amount.
// Debits are outflows and come back negative; credits come back positive.
// Unparseable or blank fields count as zero, so the result is zero when neither
// side holds a positive number.
func NormalizeAmount(debit, credit string) decimal.Decimal {
	debitValue := parseMagnitude(strings.ReplaceAll(debit, "-", ""))
	creditValue := parseMagnitude(credit)

	switch {
	case debitValue.IsPositive():
		return debitValue.Neg()
	case creditValue.IsPositive():
		return creditValue
	default:
		return decimal.Zero
	}
}

// ParseMoney parses a currency string such as "$1,234.56".
func ParseMoney(s string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.ReplaceAll(cleaned, "$", "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(cleaned)
}

func parseMagnitude(s string) decimal.Decimal {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if cleaned == "" {
		return decimal.Zero
	}
	value, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	return value
}
