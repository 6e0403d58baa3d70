package sms

import (
	"errors"
	"regexp"
	"strings"
)

var ErrInvalidPhone = errors.New("invalid phone number")

var e164 = regexp.MustCompile(`^\+\d{10,15}$`)
var nonDigits = regexp.MustCompile(`\D`)

// NormalizePhone converts a phone number to E.164. Bare 10-digit numbers are assumed
// North American. Normalizing an E.164 number returns it unchanged.
func NormalizePhone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidPhone
	}
	digits := nonDigits.ReplaceAllString(raw, "")

	// 11-digit numbers with a leading 1 and numbers already in + form only need the prefix.
	normalized := "+" + digits
	if !strings.HasPrefix(raw, "+") && len(digits) == 10 {
		normalized = "+1" + digits
	}

	if !e164.MatchString(normalized) {
		return "", ErrInvalidPhone
	}
	return normalized, nil
}

// IsDomestic reports whether a normalized number is in the North American numbering plan.
func IsDomestic(normalized string) bool {
	return strings.HasPrefix(normalized, "+1")
}
