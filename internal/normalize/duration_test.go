/*-------------------------------------------------------------------------
 *
 * LATS Admin - Call Duration Parsing Tests
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package normalize

import "testing"

func TestDuration(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"00h 01m 20s", 80},
		{"1h", 3600},
		{"20s 1m", 80},
		{"2H 3M 4S", 7384},
		{"45s", 45},
		{"1h30m", 5400},
		{"", 0},
		{"   ", 0},
		{"abc", 0},
		{"80", 0},
		{"1h 2x", 0},
		{"9999999999h", 0},
	}

	for _, tt := range tests {
		if got := Duration(tt.input); got != tt.want {
			t.Errorf("Duration(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}
