package rules

import "strings"

const (
	countryCode    = "254"
	minPhoneDigits = 10
	maxPhoneDigits = 15
	localPhoneLen  = 10
	nationalNumLen = 9
)

// NormalizePhone turns local and international spellings of a mobile number
// into the international digit form used as a recipient identity
// ("0712 345 678", "+254712345678" and "712345678" all become "254712345678").
func NormalizePhone(raw string) (string, bool) {
	var b strings.Builder
	for i, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return "", false
		}
	}

	digits := b.String()
	switch {
	case len(digits) == localPhoneLen && strings.HasPrefix(digits, "0"):
		digits = countryCode + digits[1:]
	case len(digits) == nationalNumLen && (strings.HasPrefix(digits, "7") || strings.HasPrefix(digits, "1")):
		digits = countryCode + digits
	}

	if len(digits) < minPhoneDigits || len(digits) > maxPhoneDigits {
		return "", false
	}
	if strings.HasPrefix(digits, "0") {
		return "", false
	}
	return digits, true
}
