/*-------------------------------------------------------------------------
 *
 * LATS Admin - Phone Number Normalization
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package normalize

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNormalization is the parent of every per-record normalization error
var ErrNormalization = errors.New("normalization failed")

var (
	// ErrEmptyPhone is returned when the input carries no digits at all
	ErrEmptyPhone = fmt.Errorf("%w: phone number is empty", ErrNormalization)

	// ErrUnrecognizedPhone is returned when no rule matches the digit shape
	ErrUnrecognizedPhone = fmt.Errorf("%w: unrecognized phone number", ErrNormalization)
)

// PhoneRules describes the national numbering plan used to canonicalize
// phone numbers
type PhoneRules struct {
	CountryCode    string // calling code without "+", e.g. "255"
	NationalLength int    // digits including the leading trunk 0, e.g. 10
	LocalLength    int    // subscriber digits without trunk prefix, e.g. 9
}

// DefaultPhoneRules returns the Tanzanian numbering plan
func DefaultPhoneRules() PhoneRules {
	return PhoneRules{
		CountryCode:    "255",
		NationalLength: 10,
		LocalLength:    9,
	}
}

// FullLength is the digit count of a number carrying the country code
func (r PhoneRules) FullLength() int {
	return len(r.CountryCode) + r.LocalLength
}

// Phone converts a raw phone number to canonical "+<countrycode><subscriber>"
// form. The rules are applied in order and the first match wins:
//
//  1. country code prefix with the full digit count: "+" + digits
//  2. trunk "0" prefix with the national digit count: "0" -> "+<cc>"
//  3. exactly the local subscriber length: "+<cc>" + digits
//  4. input already carried a leading "+": "+" + digits
//  5. more digits than the national length: "+" + digits
//
// Anything else is rejected. Phone never panics, and applying it to its
// own output returns the same string.
func Phone(raw string, rules PhoneRules) (string, error) {
	trimmed := strings.TrimSpace(raw)
	digits := digitsOnly(trimmed)
	if digits == "" {
		return "", ErrEmptyPhone
	}

	cc := rules.CountryCode
	switch {
	case cc != "" && strings.HasPrefix(digits, cc) && len(digits) == rules.FullLength():
		return "+" + digits, nil
	case strings.HasPrefix(digits, "0") && len(digits) == rules.NationalLength:
		return "+" + cc + digits[1:], nil
	case len(digits) == rules.LocalLength:
		return "+" + cc + digits, nil
	case strings.HasPrefix(trimmed, "+"):
		return "+" + digits, nil
	case len(digits) > rules.NationalLength:
		return "+" + digits, nil
	}

	return "", fmt.Errorf("%w: %q has %d digits", ErrUnrecognizedPhone, raw, len(digits))
}

// Digits returns the digit count of a canonical phone number
func Digits(phone string) int {
	return len(digitsOnly(phone))
}

// digitsOnly strips every non-ASCII-digit character
func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
