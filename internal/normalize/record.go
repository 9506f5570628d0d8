/*-------------------------------------------------------------------------
 *
 * LATS Admin - Record Normalization
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package normalize

import (
	"strconv"
	"strings"

	"lats-admin/internal/records"
)

// Field aliases recognized in source headers (already lower-cased)
var (
	PhoneFields = []string{"phone", "phone number", "phone_number", "mobile", "number", "tel"}
	NameFields  = []string{"name", "full name", "full_name", "customer name", "customer_name", "contact_name"}
	EmailFields = []string{"email", "e-mail", "email address", "email_address"}
)

// Options controls record normalization
type Options struct {
	Phone       PhoneRules
	DedupeNames bool   // collapse repeated name tokens
	Source      string // used when the record has no "source" field
}

// ManagedFields are destination-generated columns found in backups; they
// are not carried into metadata on restore
var ManagedFields = []string{"id", "created_at", "updated_at"}

var knownFields = func() map[string]bool {
	known := map[string]bool{"source": true}
	for _, f := range ManagedFields {
		known[f] = true
	}
	for _, group := range [][]string{PhoneFields, NameFields, EmailFields} {
		for _, f := range group {
			known[f] = true
		}
	}
	return known
}()

// Record maps a raw record to a canonical contact. Only the phone can make
// normalization fail; the returned contact still carries the line and raw
// phone so the rejection can be reported.
func Record(raw records.Raw, opts Options) (records.Contact, error) {
	rawPhone := raw.Get(PhoneFields...)
	phone, err := Phone(rawPhone, opts.Phone)
	if err != nil {
		return records.Contact{Line: raw.Line, Phone: rawPhone}, err
	}

	name := Name(raw.Get(NameFields...))
	if opts.DedupeNames {
		name = CleanDuplicateNames(name)
	}
	if name == "" {
		name = Placeholder
	}

	source := raw.Get("source")
	if source == "" {
		source = opts.Source
	}

	return records.Contact{
		Line:     raw.Line,
		Phone:    phone,
		Name:     name,
		Email:    Email(raw.Get(EmailFields...)),
		Source:   source,
		Metadata: metadata(raw),
	}, nil
}

// metadata keeps every non-empty field that is not mapped to a column
func metadata(raw records.Raw) map[string]string {
	var md map[string]string
	for k, v := range raw.Fields {
		if knownFields[k] {
			continue
		}
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if md == nil {
			md = make(map[string]string)
		}
		if k == "duration" {
			md["duration_seconds"] = strconv.Itoa(Duration(v))
			continue
		}
		md[k] = v
	}
	return md
}
