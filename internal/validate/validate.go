/*-------------------------------------------------------------------------
 *
 * LATS Admin - Record Validation
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package validate

import (
	"errors"
	"fmt"
	"strings"

	"lats-admin/internal/normalize"
	"lats-admin/internal/records"
)

// ErrRecordInvalid is wrapped by every InvalidError
var ErrRecordInvalid = errors.New("record invalid")

// maxE164Digits is the longest phone number E.164 allows
const maxE164Digits = 15

// Options holds the validation thresholds. Numbers carrying CountryCode
// are home numbers: their subscriber part must have exactly LocalLength
// digits when LocalLength is set.
type Options struct {
	MinSubscriberDigits int
	CountryCode         string
	LocalLength         int
}

// DefaultOptions returns validation thresholds matching DefaultPhoneRules
func DefaultOptions() Options {
	rules := normalize.DefaultPhoneRules()
	return Options{
		MinSubscriberDigits: 9,
		CountryCode:         rules.CountryCode,
		LocalLength:         rules.LocalLength,
	}
}

// subscriberDigits returns the digit count after the country code for home
// numbers, or the full digit count for everything else
func (o Options) subscriberDigits(phone string, digits int) (int, bool) {
	if o.CountryCode != "" && strings.HasPrefix(phone, "+"+o.CountryCode) {
		return digits - len(o.CountryCode), true
	}
	return digits, false
}

// InvalidError lists every rule a record failed
type InvalidError struct {
	Reasons []string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("%s: %s", ErrRecordInvalid, strings.Join(e.Reasons, "; "))
}

func (e *InvalidError) Unwrap() error {
	return ErrRecordInvalid
}

// Validate checks a normalized contact. All failed rules are collected so
// the report shows everything wrong with the record at once.
func Validate(c records.Contact, opts Options) error {
	var reasons []string

	digits := normalize.Digits(c.Phone)
	subscriber, home := opts.subscriberDigits(c.Phone, digits)
	switch {
	case c.Phone == "":
		reasons = append(reasons, "phone is empty")
	case !strings.HasPrefix(c.Phone, "+"):
		reasons = append(reasons, fmt.Sprintf("phone %q is not in canonical +<countrycode> form", c.Phone))
	case home && opts.LocalLength > 0 && subscriber != opts.LocalLength:
		reasons = append(reasons, fmt.Sprintf("phone %q has %d subscriber digits after +%s, need %d",
			c.Phone, subscriber, opts.CountryCode, opts.LocalLength))
	case subscriber < opts.MinSubscriberDigits:
		reasons = append(reasons, fmt.Sprintf("phone %q has %d subscriber digits, need at least %d",
			c.Phone, subscriber, opts.MinSubscriberDigits))
	case digits > maxE164Digits:
		reasons = append(reasons, fmt.Sprintf("phone %q has %d digits, E.164 allows at most %d",
			c.Phone, digits, maxE164Digits))
	}

	if strings.TrimSpace(c.Name) == "" {
		reasons = append(reasons, "name is empty")
	}

	if c.Email != "" && !strings.Contains(c.Email, "@") {
		reasons = append(reasons, fmt.Sprintf("email %q is not an address", c.Email))
	}

	if len(reasons) > 0 {
		return &InvalidError{Reasons: reasons}
	}
	return nil
}
