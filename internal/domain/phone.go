package domain

import "strings"

// PhoneFormat describes the accepted national numbering plan.
type PhoneFormat struct {
	CountryCode string
	Digits      int
}

// DefaultPhoneFormat is a ten digit national number behind +91.
var DefaultPhoneFormat = PhoneFormat{CountryCode: "91", Digits: 10}

// Normalize returns the E.164 key for raw. Separators are ignored, and an
// optional +CC, CC or trunk 0 prefix is accepted in front of the national number.
func (f PhoneFormat) Normalize(raw string) (string, error) {
	var b strings.Builder
	plus := false
	for i, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			plus = true
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return "", ErrInvalidPhone
		}
	}
	digits := b.String()

	switch {
	case len(digits) == f.Digits && !plus:
	case len(digits) == f.Digits+len(f.CountryCode) && strings.HasPrefix(digits, f.CountryCode):
		digits = digits[len(f.CountryCode):]
	case len(digits) == f.Digits+1 && digits[0] == '0' && !plus:
		digits = digits[1:]
	default:
		return "", ErrInvalidPhone
	}
	if digits[0] == '0' {
		return "", ErrInvalidPhone
	}
	return "+" + f.CountryCode + digits, nil
}
