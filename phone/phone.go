// Package phone canonicalizes free-text phone numbers into E.164 form.
package phone

import "strings"

// Normalize strips everything except digits and a leading plus, then applies
// North American defaults: 10 digits get a +1 prefix, 11 digits starting
// with 1 get a plus. Anything else is prefixed with a plus as-is.
// Normalize is idempotent for inputs that already validate.
func Normalize(raw string) string {
	var b strings.Builder
	for i, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()

	switch {
	case strings.HasPrefix(cleaned, "+"):
		return cleaned
	case len(cleaned) == 10:
		return "+1" + cleaned
	case len(cleaned) == 11 && strings.HasPrefix(cleaned, "1"):
		return "+" + cleaned
	default:
		return "+" + cleaned
	}
}

// IsValid reports whether the string is a plausible E.164 number: a plus
// followed by 7 to 15 digits. Syntactic check only, no carrier lookup.
func IsValid(number string) bool {
	if !strings.HasPrefix(number, "+") {
		return false
	}
	digits := number[1:]
	if len(digits) < 7 || len(digits) > 15 {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
