/*-------------------------------------------------------------------------
 *
 * LATS Admin - Name Normalization Tests
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package normalize

import "testing"

func TestName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"mary A.", "Mary A."},
		{"  JOHN   smith ", "John Smith"},
		{"Frank #Juma!", "Frank Juma"},
		{"***", ""},
		{"mary\u00a0akinyi", "Mary Akinyi"},
		{"asha\u2003juma\u3000ali", "Asha Juma Ali"},
		{"o\u2019brien", "O'brien"},
		{"jos\u0065\u0301", "Jos\u0065\u0301"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Name(tt.input); got != tt.want {
			t.Errorf("Name(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestCleanDuplicateNames(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Frank Juma Frank", "Frank Juma"},
		{"John Smith", "John Smith"},
		{"John John Smith", "John Smith"},
		{"frank Juma FRANK", "frank Juma"},
		{"Frank Juma Frank Juma", "Frank Juma"},
		{"Maria Maria", "Maria"},
		{"Single", "Single"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := CleanDuplicateNames(tt.input); got != tt.want {
			t.Errorf("CleanDuplicateNames(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestHasDuplicateTokens(t *testing.T) {
	if !HasDuplicateTokens("Frank Juma Frank") {
		t.Error("expected duplicate tokens in \"Frank Juma Frank\"")
	}
	if HasDuplicateTokens("John  Smith") {
		t.Error("whitespace alone should not count as a duplicate")
	}
}

func TestEmail(t *testing.T) {
	if got := Email("  Mary@Example.COM "); got != "mary@example.com" {
		t.Errorf("Email = %q", got)
	}
}
