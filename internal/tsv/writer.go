/*-------------------------------------------------------------------------
 *
 * LATS Admin - Rejected Records File
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package tsv

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"

	"lats-admin/internal/records"
)

// Header is the first line of a rejects file
var Header = []string{"line", "batch", "index", "phone", "stage", "reason"}

// Writer writes one line per rejected or unwritten record. It is safe for
// concurrent use.
type Writer struct {
	mu      sync.Mutex
	w       *bufio.Writer
	closer  io.Closer
	started bool
	count   int
	err     error
}

// NewWriter writes to w. The header is written with the first record.
func NewWriter(w io.Writer) *Writer {
	tw := &Writer{w: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		tw.closer = c
	}
	return tw
}

// Create opens path for writing, truncating an existing file
func Create(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to create rejects file: %w", err)
	}
	return NewWriter(f), nil
}

// Write appends one record. After the first failure every call returns it.
func (w *Writer) Write(e records.RecordError) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.err != nil {
		return w.err
	}
	if !w.started {
		w.started = true
		w.writeLine(BuildRow(stringsToAny(Header)...))
	}
	w.writeLine(BuildRow(e.Line, e.Batch, e.Index, e.Phone, e.Stage, e.Reason))
	if w.err == nil {
		w.count++
	}
	return w.err
}

func (w *Writer) writeLine(s string) {
	if w.err != nil {
		return
	}
	if _, err := w.w.WriteString(s + "\n"); err != nil {
		w.err = fmt.Errorf("failed to write rejects file: %w", err)
	}
}

// Count returns the number of records written
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Flush writes buffered lines to the underlying writer
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.w.Flush(); err != nil && w.err == nil {
		w.err = fmt.Errorf("failed to flush rejects file: %w", err)
	}
	return w.err
}

// Close flushes and closes the underlying writer when it is closable
func (w *Writer) Close() error {
	err := w.Flush()
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func stringsToAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
