/*-------------------------------------------------------------------------
 *
 * LATS Admin - Name Normalization
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Placeholder is used when a record carries no usable name
const Placeholder = "Unknown Customer"

// nameDisallowed matches everything except letters (with their combining
// marks), digits, whitespace, hyphen, period and apostrophe
var nameDisallowed = regexp.MustCompile(`[^\p{L}\p{M}\p{N}\s\-.']`)

// foldName maps Unicode spaces such as NBSP to ' ' and typographic
// apostrophes to '\''
func foldName(r rune) rune {
	switch {
	case unicode.IsSpace(r):
		return ' '
	case r == '\u2019' || r == '\u2018' || r == '\u02bc':
		return '\''
	}
	return r
}

// Name trims the raw name, strips disallowed characters, collapses
// whitespace and title-cases each token. It returns "" when nothing is left.
func Name(raw string) string {
	cleaned := nameDisallowed.ReplaceAllString(strings.Map(foldName, raw), "")
	tokens := strings.Fields(cleaned)
	if len(tokens) == 0 {
		return ""
	}

	// Casers keep state, so one per call
	return cases.Title(language.Und).String(strings.Join(tokens, " "))
}

// CleanDuplicateNames drops tokens that repeat an earlier token
// (case-insensitive), which covers both "John John Smith" and the
// wrap-around form "Frank Juma Frank". Names without repeats come back
// unchanged apart from whitespace collapsing.
func CleanDuplicateNames(name string) string {
	tokens := strings.Fields(name)
	if len(tokens) < 2 {
		return strings.Join(tokens, " ")
	}

	seen := make(map[string]bool, len(tokens))
	kept := tokens[:0:0]
	for _, tok := range tokens {
		key := strings.ToLower(tok)
		if seen[key] {
			continue
		}
		seen[key] = true
		kept = append(kept, tok)
	}

	return strings.Join(kept, " ")
}

// HasDuplicateTokens reports whether CleanDuplicateNames would change name
func HasDuplicateTokens(name string) bool {
	return CleanDuplicateNames(name) != strings.Join(strings.Fields(name), " ")
}

// Email trims and lower-cases an e-mail address
func Email(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
