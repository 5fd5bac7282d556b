// Package phone canonicalizes phone numbers to E.164. Every number that
// crosses a storage or lookup boundary goes through Normalize first; mixing
// raw and normalized forms is the classic source of "number not found".
package phone

import (
	"errors"
	"strings"
)

// ErrInvalidNumber is returned when input cannot be canonicalized.
var ErrInvalidNumber = errors.New("invalid phone number")

// DefaultRegion is the region assumed for numbers without a country prefix.
const DefaultRegion = "US"

// Normalize converts raw input into E.164 ("+" followed by digits only).
//
// Input already carrying "+" keeps its country code; all punctuation and
// whitespace are stripped. Without "+" and with region US: 10 digits get
// "+1", 11 digits starting with "1" get "+", and 11 or more digits are
// accepted as an international number. Anything shorter is invalid.
func Normalize(raw, region string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	hasPlus := strings.HasPrefix(trimmed, "+")
	digits := stripNonDigits(trimmed)

	if digits == "" {
		return "", ErrInvalidNumber
	}

	if hasPlus {
		return "+" + digits, nil
	}

	if region == DefaultRegion || region == "" {
		switch {
		case len(digits) == 10:
			return "+1" + digits, nil
		case len(digits) == 11 && digits[0] == '1':
			return "+" + digits, nil
		}
	}

	if len(digits) >= 11 {
		return "+" + digits, nil
	}

	return "", ErrInvalidNumber
}

func stripNonDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
