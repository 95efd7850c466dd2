package enums

import (
	"fmt"
	"strings"
)

// BillingMode selects how an agenda prices a reservation.
type BillingMode string

const (
	BillingModeHour  BillingMode = "HORA"
	BillingModeShift BillingMode = "TURNO"
	BillingModeDay   BillingMode = "DIA"
)

var validBillingModes = []BillingMode{
	BillingModeHour,
	BillingModeShift,
	BillingModeDay,
}

var billingModeAliases = map[string]BillingMode{
	"HOUR":  BillingModeHour,
	"SHIFT": BillingModeShift,
	"DAY":   BillingModeDay,
}

// String implements fmt.Stringer.
func (b BillingMode) String() string {
	return string(b)
}

// IsValid reports whether the value is a known BillingMode.
func (b BillingMode) IsValid() bool {
	return oneOf(b, validBillingModes)
}

// ParseBillingMode accepts the stored values (HORA/TURNO/DIA) as well as the
// English aliases HOUR/SHIFT/DAY, case-insensitively.
func ParseBillingMode(value string) (BillingMode, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	if alias, ok := billingModeAliases[normalized]; ok {
		return alias, nil
	}
	mode, err := parseOneOf("billing mode", normalized, validBillingModes)
	if err != nil {
		return "", fmt.Errorf("invalid billing mode %q", value)
	}
	return mode, nil
}
