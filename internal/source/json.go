/*-------------------------------------------------------------------------
 *
 * LATS Admin - JSON Backup Source
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package source

import (
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"os"

	"lats-admin/internal/records"
)

// jsonSource reads a JSON array of flat objects, the layout written by
// the backup command. A nested "metadata" object is flattened into fields.
type jsonSource struct {
	path     string
	file     *os.File
	decoder  *json.Decoder
	consumed bool
}

func openJSON(path string, opts Options) (*jsonSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open source: %w", err)
	}

	r, err := decodingReader(f, opts.Encoding)
	if err != nil {
		f.Close()
		return nil, err
	}

	decoder := json.NewDecoder(r)
	decoder.UseNumber()

	tok, err := decoder.Token()
	if err != nil {
		f.Close()
		return nil, &ParseError{Path: path, Err: err}
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		f.Close()
		return nil, &ParseError{Path: path, Err: errors.New("expected a JSON array of objects")}
	}

	return &jsonSource{path: path, file: f, decoder: decoder}, nil
}

func (s *jsonSource) Path() string   { return s.path }
func (s *jsonSource) Format() Format { return FormatJSON }

func (s *jsonSource) Records() iter.Seq2[records.Raw, error] {
	if s.consumed {
		return consumed()
	}
	s.consumed = true

	return func(yield func(records.Raw, error) bool) {
		index := 0
		for s.decoder.More() {
			index++
			var obj map[string]any
			if err := s.decoder.Decode(&obj); err != nil {
				yield(records.Raw{}, &ParseError{Path: s.path, Line: index, Err: err})
				return
			}
			if !yield(records.Raw{Line: index, Fields: flatten(obj)}, nil) {
				return
			}
		}
		if _, err := s.decoder.Token(); err != nil {
			yield(records.Raw{}, &ParseError{Path: s.path, Line: index, Err: err})
		}
	}
}

func (s *jsonSource) Close() error {
	return s.file.Close()
}

func flatten(obj map[string]any) map[string]string {
	fields := make(map[string]string, len(obj))
	for k, v := range obj {
		if nested, ok := v.(map[string]any); ok && fieldName(k) == "metadata" {
			for nk, nv := range nested {
				name := fieldName(nk)
				if _, taken := obj[name]; !taken {
					fields[name] = stringify(nv)
				}
			}
			continue
		}
		if v == nil {
			continue
		}
		fields[fieldName(k)] = stringify(v)
	}
	return fields
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	}
}
