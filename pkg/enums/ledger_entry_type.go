package enums

import (
	"fmt"
	"strings"
)

// LedgerEntryType is the direction of a credit ledger entry.
// DEBIT increases what the customer owes, CREDIT decreases it.
type LedgerEntryType string

const (
	LedgerEntryDebit  LedgerEntryType = "DEBIT"
	LedgerEntryCredit LedgerEntryType = "CREDIT"
)

var validLedgerEntryTypes = []LedgerEntryType{
	LedgerEntryDebit,
	LedgerEntryCredit,
}

func (t LedgerEntryType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known LedgerEntryType.
func (t LedgerEntryType) IsValid() bool {
	for _, candidate := range validLedgerEntryTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseLedgerEntryType converts raw input into a LedgerEntryType.
func ParseLedgerEntryType(value string) (LedgerEntryType, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validLedgerEntryTypes {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger entry type %q", value)
}
