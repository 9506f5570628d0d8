/*-------------------------------------------------------------------------
 *
 * LATS Admin - Excel Workbook Source
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package source

import (
	"errors"
	"fmt"
	"iter"

	"github.com/xuri/excelize/v2"

	"lats-admin/internal/records"
)

// xlsxSource reads one worksheet whose first row holds the column names
type xlsxSource struct {
	path     string
	file     *excelize.File
	rows     *excelize.Rows
	headers  []string
	consumed bool
}

func openXLSX(path string, opts Options) (*xlsxSource, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	sheet := opts.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			f.Close()
			return nil, &ParseError{Path: path, Err: errors.New("workbook has no sheets")}
		}
		sheet = sheets[0]
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		f.Close()
		return nil, &ParseError{Path: path, Err: fmt.Errorf("sheet %q: %w", sheet, err)}
	}

	if !rows.Next() {
		rows.Close()
		f.Close()
		return nil, &ParseError{Path: path, Err: errors.New("missing header row")}
	}
	header, err := rows.Columns()
	if err != nil {
		rows.Close()
		f.Close()
		return nil, &ParseError{Path: path, Line: 1, Err: err}
	}

	headers := make([]string, len(header))
	for i, h := range header {
		headers[i] = fieldName(h)
	}

	return &xlsxSource{path: path, file: f, rows: rows, headers: headers}, nil
}

func (s *xlsxSource) Path() string   { return s.path }
func (s *xlsxSource) Format() Format { return FormatXLSX }

func (s *xlsxSource) Records() iter.Seq2[records.Raw, error] {
	if s.consumed {
		return consumed()
	}
	s.consumed = true

	return func(yield func(records.Raw, error) bool) {
		line := 1
		for s.rows.Next() {
			line++
			row, err := s.rows.Columns()
			if err != nil {
				yield(records.Raw{}, &ParseError{Path: s.path, Line: line, Err: err})
				return
			}
			if blankRow(row) {
				continue
			}

			fields := make(map[string]string, len(s.headers))
			for i, h := range s.headers {
				if h != "" && i < len(row) {
					fields[h] = row[i]
				}
			}
			if !yield(records.Raw{Line: line, Fields: fields}, nil) {
				return
			}
		}
		if err := s.rows.Error(); err != nil {
			yield(records.Raw{}, &ParseError{Path: s.path, Line: line, Err: err})
		}
	}
}

func (s *xlsxSource) Close() error {
	rowsErr := s.rows.Close()
	if err := s.file.Close(); err != nil {
		return err
	}
	return rowsErr
}
