package mpesa

import (
	"strings"

	errors "github.com/jameskipngetich/paymentService/internal"
)

const (
	countryCode     = "254"
	trunkPrefix     = "0"
	subscriberWidth = 12
)

// NormalizePhone converts user-entered phone numbers into the 12-digit
// subscriber format the gateway requires (254XXXXXXXXX).
//
// The algorithm must stay byte-for-byte compatible with what the gateway
// expects: strip non-digits, swap a leading trunk "0" for the country
// code, otherwise prepend the country code when missing, then reject
// anything that is not exactly 12 digits.
func NormalizePhone(raw string) (string, *errors.AppError) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	if digits == "" {
		return "", errors.NewValidationError("phone number must contain digits", errors.ErrCodeInvalidPhone)
	}

	switch {
	case strings.HasPrefix(digits, trunkPrefix):
		digits = countryCode + digits[1:]
	case !strings.HasPrefix(digits, countryCode):
		digits = countryCode + digits
	}

	if len(digits) != subscriberWidth {
		return "", errors.NewValidationError("phone number must normalize to 12 digits", errors.ErrCodeInvalidPhone)
	}

	return digits, nil
}
