/*-------------------------------------------------------------------------
 *
 * LATS Admin - Source Readers
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
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"lats-admin/internal/logging"
	"lats-admin/internal/records"
)

// Format identifies the layout of a source file
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXML  Format = "xml"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

var (
	// ErrSourceNotFound is returned when the source path does not exist
	ErrSourceNotFound = errors.New("source not found")

	// ErrSourceParse is wrapped by every ParseError
	ErrSourceParse = errors.New("source parse error")

	// ErrConsumed is yielded when Records is called a second time
	ErrConsumed = errors.New("source already consumed")
)

// ParseError reports content that cannot be tokenized into records
type ParseError struct {
	Path string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("failed to parse %s at line %d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("failed to parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() []error {
	return []error{ErrSourceParse, e.Err}
}

// Options controls how a source file is decoded
type Options struct {
	Encoding  string // utf-8 (default), utf-16, windows-1252, latin1
	Delimiter rune   // CSV field separator, default ','
	Sheet     string // XLSX sheet name, default first sheet
}

// Source is a finite, single-pass sequence of raw records
type Source interface {
	// Records yields every record once. A non-nil error ends the sequence.
	Records() iter.Seq2[records.Raw, error]

	// Path returns the file the records come from
	Path() string

	// Format returns the file layout
	Format() Format

	Close() error
}

// ParseFormat converts a user supplied format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatXML, FormatXLSX, FormatJSON:
		return f, nil
	case "":
		return "", nil
	default:
		return "", fmt.Errorf("unsupported source format %q (use csv, xml, xlsx or json)", s)
	}
}

// FormatFromPath infers the format from the file extension
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return FormatCSV
	case ".xml":
		return FormatXML
	case ".xlsx":
		return FormatXLSX
	case ".json":
		return FormatJSON
	default:
		return ""
	}
}

// Open opens a source file. An empty format is inferred from the extension.
func Open(path string, format Format, opts Options) (Source, error) {
	if format == "" {
		format = FormatFromPath(path)
		if format == "" {
			return nil, fmt.Errorf("cannot infer source format from %s, use --format", path)
		}
	}

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat source: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrSourceNotFound, path)
	}

	switch format {
	case FormatCSV:
		src, err := openCSV(path, opts)
		if err != nil {
			return nil, err
		}
		logging.Debug("csv source opened", "path", path, "headers", src.Headers())
		return src, nil
	case FormatXML:
		return openXML(path, opts)
	case FormatXLSX:
		return openXLSX(path, opts)
	case FormatJSON:
		return openJSON(path, opts)
	default:
		return nil, fmt.Errorf("unsupported source format %q", format)
	}
}

// ReadAll drains a source into memory
func ReadAll(src Source) ([]records.Raw, error) {
	var all []records.Raw
	for raw, err := range src.Records() {
		if err != nil {
			return all, err
		}
		all = append(all, raw)
	}
	return all, nil
}

// fieldName canonicalizes a header or attribute name
func fieldName(s string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(s, "\ufeff")))
}

// consumed yields ErrConsumed for a second pass over a source
func consumed() iter.Seq2[records.Raw, error] {
	return func(yield func(records.Raw, error) bool) {
		yield(records.Raw{}, ErrConsumed)
	}
}
