/*-------------------------------------------------------------------------
 *
 * LATS Admin - Contact Record Types
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package records

import (
	"sort"
	"strings"
)

// Stages that can reject or fail a record
const (
	StageNormalize = "normalize"
	StageValidate  = "validate"
	StageUpsert    = "upsert"
)

// Raw is a record as read from a source file. Field names are lower-cased
// and trimmed by the reader; values are untouched.
type Raw struct {
	Line   int               // 1-based line/row/element number in the source
	Fields map[string]string // field name -> raw value
}

// Get returns the trimmed value of the first non-empty field among names
func (r Raw) Get(names ...string) string {
	for _, name := range names {
		if v, ok := r.Fields[name]; ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

// Contact is a normalized, typed record ready for validation and loading
type Contact struct {
	Line     int               `json:"line,omitempty"`
	Phone    string            `json:"phone"`
	Name     string            `json:"name"`
	Email    string            `json:"email,omitempty"`
	Source   string            `json:"source,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// RecordError describes why a single record was rejected or not written
type RecordError struct {
	Line   int    `json:"line,omitempty"`
	Batch  int    `json:"batch,omitempty"` // 1-based batch number, 0 before batching
	Index  int    `json:"index,omitempty"` // 1-based position within the batch
	Phone  string `json:"phone,omitempty"`
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

// BatchResult is the outcome of writing one batch to the destination
type BatchResult struct {
	Batch      int           `json:"batch"`
	Attempted  int           `json:"attempted"`
	Succeeded  int           `json:"succeeded"`
	Duplicates int           `json:"duplicates"`
	Failed     int           `json:"failed"`
	Errors     []RecordError `json:"errors,omitempty"`
}

// KeySet is a set of destination-side unique keys used for membership tests
type KeySet map[string]struct{}

// NewKeySet creates a key set holding the given keys
func NewKeySet(keys ...string) KeySet {
	s := make(KeySet, len(keys))
	for _, k := range keys {
		s.Add(k)
	}
	return s
}

// Add inserts a key
func (s KeySet) Add(key string) { s[key] = struct{}{} }

// Has reports whether the key is present
func (s KeySet) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Len returns the number of keys
func (s KeySet) Len() int { return len(s) }

// Merge adds every key of other to s
func (s KeySet) Merge(other KeySet) {
	for k := range other {
		s.Add(k)
	}
}

// Sorted returns the keys in lexical order
func (s KeySet) Sorted() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Phones returns the phone of each contact, in order
func Phones(contacts []Contact) []string {
	phones := make([]string, len(contacts))
	for i, c := range contacts {
		phones[i] = c.Phone
	}
	return phones
}
