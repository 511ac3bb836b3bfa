package payment

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/currency"

	apperrors "github.com/louisbranch/passwallet/internal/platform/errors"
)

// ParseAmount converts a decimal string such as "50.00" into minor units of
// the given ISO 4217 currency. More fractional digits than the currency's
// standard scale are rejected rather than rounded.
func ParseAmount(value, code string) (int64, currency.Unit, error) {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return 0, currency.Unit{}, apperrors.WithMetadata(apperrors.CodeInvalidCurrency, "unknown currency", map[string]string{"Currency": code})
	}
	scale, _ := currency.Standard.Rounding(unit)

	value = strings.TrimSpace(value)
	whole, frac, hasFrac := strings.Cut(value, ".")
	if whole == "" || !digitsOnly(whole) || (hasFrac && (frac == "" || !digitsOnly(frac))) {
		return 0, unit, invalidAmount(value)
	}
	if len(frac) > scale {
		return 0, unit, apperrors.WithMetadata(apperrors.CodeInvalidAmount, "amount has too many decimal places", map[string]string{"Amount": value, "Currency": unit.String()})
	}
	frac += strings.Repeat("0", scale-len(frac))

	minor, err := strconv.ParseInt(whole+frac, 10, 64)
	if err != nil {
		return 0, unit, invalidAmount(value)
	}
	if minor <= 0 {
		return 0, unit, apperrors.WithMetadata(apperrors.CodeInvalidAmount, "amount must be positive", map[string]string{"Amount": value})
	}
	return minor, unit, nil
}

// FormatAmount renders minor units as a decimal string in the currency's scale.
func FormatAmount(minor int64, code string) string {
	unit, err := currency.ParseISO(strings.ToUpper(code))
	if err != nil {
		return strconv.FormatInt(minor, 10)
	}
	scale, _ := currency.Standard.Rounding(unit)
	if scale == 0 {
		return strconv.FormatInt(minor, 10)
	}
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	digits := fmt.Sprintf("%0*d", scale+1, minor)
	cut := len(digits) - scale
	return sign + digits[:cut] + "." + digits[cut:]
}

func digitsOnly(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func invalidAmount(value string) error {
	return apperrors.WithMetadata(apperrors.CodeInvalidAmount, "amount must be a positive decimal", map[string]string{"Amount": value})
}
