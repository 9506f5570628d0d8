/*-------------------------------------------------------------------------
 *
 * LATS Admin - SMS/Call Backup XML Source
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package source

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"

	"lats-admin/internal/records"
)

// unknownContact is what SMS Backup & Restore writes for numbers that are
// not in the address book
const unknownContact = "(unknown)"

// xmlSource reads "SMS Backup & Restore" exports: <sms .../> and
// <call .../> elements carrying their data as attributes
type xmlSource struct {
	path     string
	file     *os.File
	decoder  *xml.Decoder
	consumed bool
}

func openXML(path string, opts Options) (*xmlSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open source: %w", err)
	}

	r, err := decodingReader(f, opts.Encoding)
	if err != nil {
		f.Close()
		return nil, err
	}

	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = charsetReader

	return &xmlSource{path: path, file: f, decoder: decoder}, nil
}

func (s *xmlSource) Path() string   { return s.path }
func (s *xmlSource) Format() Format { return FormatXML }

func (s *xmlSource) Records() iter.Seq2[records.Raw, error] {
	if s.consumed {
		return consumed()
	}
	s.consumed = true

	return func(yield func(records.Raw, error) bool) {
		sawElement := false
		for {
			tok, err := s.decoder.Token()
			if errors.Is(err, io.EOF) {
				if !sawElement {
					yield(records.Raw{}, &ParseError{Path: s.path, Err: errors.New("document has no elements")})
				}
				return
			}
			if err != nil {
				line := 0
				var syntaxErr *xml.SyntaxError
				if errors.As(err, &syntaxErr) {
					line = syntaxErr.Line
				}
				yield(records.Raw{}, &ParseError{Path: s.path, Line: line, Err: err})
				return
			}

			start, ok := tok.(xml.StartElement)
			if !ok {
				continue
			}
			sawElement = true

			var fields map[string]string
			switch start.Name.Local {
			case "sms":
				fields = smsFields(start.Attr)
			case "call":
				fields = callFields(start.Attr)
			default:
				continue
			}

			line, _ := s.decoder.InputPos()
			if !yield(records.Raw{Line: line, Fields: fields}, nil) {
				return
			}
		}
	}
}

func (s *xmlSource) Close() error {
	return s.file.Close()
}

func attrMap(attrs []xml.Attr) map[string]string {
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		m[fieldName(a.Name.Local)] = a.Value
	}
	return m
}

func contactName(attrs map[string]string) string {
	name := strings.TrimSpace(attrs["contact_name"])
	if strings.ToLower(name) == unknownContact {
		return ""
	}
	return name
}

// smsFields maps an <sms> element; the message body is not kept
func smsFields(attrs []xml.Attr) map[string]string {
	m := attrMap(attrs)
	return map[string]string{
		"phone":         m["address"],
		"name":          contactName(m),
		"date":          m["date"],
		"readable_date": m["readable_date"],
		"type":          m["type"],
		"kind":          "sms",
	}
}

// callFields maps a <call> element; duration is already in seconds
func callFields(attrs []xml.Attr) map[string]string {
	m := attrMap(attrs)
	return map[string]string{
		"phone":            m["number"],
		"name":             contactName(m),
		"date":             m["date"],
		"readable_date":    m["readable_date"],
		"type":             m["type"],
		"duration_seconds": m["duration"],
		"kind":             "call",
	}
}
