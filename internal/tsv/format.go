/*-------------------------------------------------------------------------
 *
 * LATS Admin - Tab Separated Values
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package tsv

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var escaper = strings.NewReplacer("\\", "\\\\", "\t", "\\t", "\n", "\\n", "\r", "\\r")

// FormatValue renders a value as a single TSV field. Tabs, newlines and
// backslashes are escaped so every record stays on one line; nil and zero
// ints render empty.
func FormatValue(v any) string {
	var s string
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		s = val
	case []byte:
		s = string(val)
	case int:
		if val == 0 {
			return ""
		}
		s = strconv.Itoa(val)
	case int64:
		s = strconv.FormatInt(val, 10)
	case bool:
		s = strconv.FormatBool(val)
	case time.Time:
		s = val.UTC().Format(time.RFC3339)
	case map[string]string, map[string]any, []any:
		b, err := json.Marshal(val)
		if err != nil {
			s = fmt.Sprint(val)
		} else {
			s = string(b)
		}
	default:
		s = fmt.Sprint(val)
	}
	return escaper.Replace(s)
}

// BuildRow joins values into one TSV line without the trailing newline
func BuildRow(values ...any) string {
	fields := make([]string, len(values))
	for i, v := range values {
		fields[i] = FormatValue(v)
	}
	return strings.Join(fields, "\t")
}
