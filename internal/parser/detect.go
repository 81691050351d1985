package parser

import (
	"path/filepath"
	"strings"
)

// Format identifies one supported statement layout.
type Format string

// Supported statement layouts.
const (
	FormatAmex       Format = "amex"
	FormatTDChequing Format = "td-chequing"
	FormatTDCommon   Format = "td-common"
	FormatTDGeneric  Format = "td-generic"
)

// Confidence describes how sure the detector is about its choice.
type Confidence string

// Detection confidence levels.
const (
	ConfidenceHigh Confidence = "high"
	ConfidenceLow  Confidence = "low"
)

// Account source labels assigned by the detector.
const (
	SourceAmex         = "American Express"
	SourceTDChequing   = "TD Chequing"
	SourceTDCreditCard = "TD Credit Card"
	SourceTDAccountIN  = "TD Account IN"
	SourceTDAccount    = "TD Account"
	SourceBankAccount  = "Bank Account"
)

// Selection is the outcome of format detection.
type Selection struct {
	Format        Format
	AccountSource string
	Confidence    Confidence
}

// LowConfidence reports whether the selection is the catch-all guess.
func (s Selection) LowConfidence() bool {
	return s.Confidence == ConfidenceLow
}

var genericExportMarkers = []string{"accountactivity", "account_activity", "statement", "export"}

// Detect picks a statement layout from the original file name alone.
// It never rejects a name: unknown names fall through to the generic
// layout with low confidence.
func Detect(filename string) Selection {
	name := strings.ToLower(filepath.Base(filename))

	switch {
	case strings.Contains(name, "amex"):
		return Selection{Format: FormatAmex, AccountSource: SourceAmex, Confidence: ConfidenceHigh}
	case strings.Contains(name, "td") && (strings.Contains(name, "chequing") || strings.Contains(name, "chq")):
		return Selection{Format: FormatTDChequing, AccountSource: SourceTDChequing, Confidence: ConfidenceHigh}
	case strings.Contains(name, "td"):
		return Selection{Format: FormatTDCommon, AccountSource: tdCommonSource(name), Confidence: ConfidenceHigh}
	case containsAny(name, genericExportMarkers):
		return Selection{Format: FormatTDGeneric, AccountSource: SourceTDAccount, Confidence: ConfidenceHigh}
	default:
		return Selection{Format: FormatTDGeneric, AccountSource: SourceBankAccount, Confidence: ConfidenceLow}
	}
}

func tdCommonSource(name string) string {
	switch {
	case strings.Contains(name, "cb"):
		return SourceTDCreditCard
	case strings.Contains(name, "in"):
		return SourceTDAccountIN
	default:
		return SourceTDAccount
	}
}

func containsAny(s string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(s, needle) {
			return true
		}
	}
	return false
}
