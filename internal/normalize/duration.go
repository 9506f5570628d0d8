/*-------------------------------------------------------------------------
 *
 * LATS Admin - Call Duration Parsing
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	durationShape = regexp.MustCompile(`(?i)^\s*(\d+\s*[hms]\s*)+$`)
	durationToken = regexp.MustCompile(`(?i)(\d+)\s*([hms])`)
)

// maxDurationDigits keeps the multiplication below from overflowing
const maxDurationDigits = 9

// Duration parses call-log durations such as "00h 01m 20s" or "5m" into
// total seconds. Tokens may appear in any order and combination. Empty or
// malformed input yields 0.
func Duration(s string) int {
	if !durationShape.MatchString(s) {
		return 0
	}

	total := 0
	for _, m := range durationToken.FindAllStringSubmatch(s, -1) {
		if len(m[1]) > maxDurationDigits {
			return 0
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0
		}
		switch strings.ToLower(m[2]) {
		case "h":
			total += n * 3600
		case "m":
			total += n * 60
		case "s":
			total += n
		}
	}

	return total
}
