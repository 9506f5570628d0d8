/*-------------------------------------------------------------------------
 *
 * LATS Admin - Source Character Encodings
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package source

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// lookupEncoding maps a user supplied encoding name to a decoder. The
// default honours UTF-8 and UTF-16 byte order marks, which spreadsheet
// exports commonly carry.
func lookupEncoding(name string) (transform.Transformer, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "_", "-")) {
	case "", "utf-8", "utf8":
		return unicode.BOMOverride(unicode.UTF8.NewDecoder()), nil
	case "utf-16", "utf16":
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder(), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder(), nil
	case "latin1", "iso-8859-1":
		return charmap.ISO8859_1.NewDecoder(), nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
}

// decodingReader wraps r so it yields UTF-8
func decodingReader(r io.Reader, name string) (io.Reader, error) {
	t, err := lookupEncoding(name)
	if err != nil {
		return nil, err
	}
	return transform.NewReader(r, t), nil
}

// charsetReader resolves charsets declared in an XML prolog
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil {
		return nil, fmt.Errorf("unknown XML charset %q: %w", label, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported XML charset %q", label)
	}
	if enc == encoding.Nop || enc == unicode.UTF8 {
		return input, nil
	}
	return enc.NewDecoder().Reader(input), nil
}
