/*-------------------------------------------------------------------------
 *
 * LATS Admin - Table Backup
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package backup

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"lats-admin/internal/logging"
	"lats-admin/internal/store"
)

// DefaultPageSize is the number of rows read per page
const DefaultPageSize = 1000

// Export writes every row of the scanner's table to w as a JSON array, one
// object per line, reading page by page. The output is a valid json source
// for import, so a backup can be restored with the normal pipeline.
func Export(ctx context.Context, sc store.Scanner, pageSize int, w io.Writer) (int, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	start := time.Now()
	bw := bufio.NewWriter(w)
	count := 0

	if _, err := bw.WriteString("["); err != nil {
		return 0, fmt.Errorf("failed to write backup: %w", err)
	}

	err := sc.Scan(ctx, pageSize, func(rows []store.Row) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, row := range rows {
			data, err := json.Marshal(row)
			if err != nil {
				return fmt.Errorf("failed to encode row %d: %w", count+1, err)
			}
			sep := ",\n  "
			if count == 0 {
				sep = "\n  "
			}
			if _, err := bw.WriteString(sep); err != nil {
				return fmt.Errorf("failed to write backup: %w", err)
			}
			if _, err := bw.Write(data); err != nil {
				return fmt.Errorf("failed to write backup: %w", err)
			}
			count++
		}
		logging.Debug("backup page written", "rows", len(rows), "total", count)
		return nil
	})
	if err != nil {
		return count, err
	}

	tail := "\n]\n"
	if count == 0 {
		tail = "]\n"
	}
	if _, err := bw.WriteString(tail); err != nil {
		return count, fmt.Errorf("failed to write backup: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return count, fmt.Errorf("failed to write backup: %w", err)
	}

	logging.Info("backup complete", "rows", count, "duration", time.Since(start))
	return count, nil
}
