/*-------------------------------------------------------------------------
 *
 * LATS Admin - CSV Source
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"

	"lats-admin/internal/records"
)

// csvSource reads a CSV file with a header row. Quoted fields may contain
// the delimiter, quotes and newlines.
type csvSource struct {
	path     string
	file     *os.File
	reader   *csv.Reader
	headers  []string
	consumed bool
}

func openCSV(path string, opts Options) (*csvSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open source: %w", err)
	}

	r, err := decodingReader(f, opts.Encoding)
	if err != nil {
		f.Close()
		return nil, err
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}

	// First row is always the header
	header, err := reader.Read()
	if err != nil {
		f.Close()
		if errors.Is(err, io.EOF) {
			return nil, &ParseError{Path: path, Err: errors.New("missing header row")}
		}
		return nil, &ParseError{Path: path, Line: 1, Err: err}
	}

	headers := make([]string, len(header))
	named := 0
	for i, h := range header {
		headers[i] = fieldName(h)
		if headers[i] != "" {
			named++
		}
	}
	if named == 0 {
		f.Close()
		return nil, &ParseError{Path: path, Line: 1, Err: errors.New("header row has no column names")}
	}

	return &csvSource{
		path:    path,
		file:    f,
		reader:  reader,
		headers: headers,
	}, nil
}

func (s *csvSource) Path() string   { return s.path }
func (s *csvSource) Format() Format { return FormatCSV }

// Headers returns the canonicalized header names
func (s *csvSource) Headers() []string { return s.headers }

func (s *csvSource) Records() iter.Seq2[records.Raw, error] {
	if s.consumed {
		return consumed()
	}
	s.consumed = true

	return func(yield func(records.Raw, error) bool) {
		for {
			row, err := s.reader.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				line := 0
				var csvErr *csv.ParseError
				if errors.As(err, &csvErr) {
					line = csvErr.StartLine
				}
				yield(records.Raw{}, &ParseError{Path: s.path, Line: line, Err: err})
				return
			}

			if blankRow(row) {
				continue
			}

			line, _ := s.reader.FieldPos(0)
			fields := make(map[string]string, len(s.headers))
			for i, h := range s.headers {
				if h == "" || i >= len(row) {
					continue
				}
				// Duplicate columns: first non-empty value wins
				if existing, ok := fields[h]; ok && existing != "" {
					continue
				}
				fields[h] = row[i]
			}

			if !yield(records.Raw{Line: line, Fields: fields}, nil) {
				return
			}
		}
	}
}

func (s *csvSource) Close() error {
	return s.file.Close()
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
