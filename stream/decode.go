package stream

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

// SniffLen is the number of leading bytes inspected for a charset.
const SniffLen = 200

var encodingAttr = regexp.MustCompile(`(?i)encoding\s*=\s*["']([^"']+)["']`)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16BE = []byte{0xFE, 0xFF}
	bomUTF16LE = []byte{0xFF, 0xFE}
)

// SniffEncoding returns the charset label declared in the XML prolog or
// implied by a byte order mark, lower-cased. It returns "" when neither is
// present.
func SniffEncoding(head []byte) string {
	switch {
	case bytes.HasPrefix(head, bomUTF8):
		return "utf-8"
	case bytes.HasPrefix(head, bomUTF16BE):
		return "utf-16be"
	case bytes.HasPrefix(head, bomUTF16LE):
		return "utf-16le"
	}
	if len(head) > SniffLen {
		head = head[:SniffLen]
	}
	if m := encodingAttr.FindSubmatch(head); m != nil {
		return strings.ToLower(string(m[1]))
	}
	return ""
}

// LookupEncoding resolves an IANA charset label.
func LookupEncoding(label string) (encoding.Encoding, error) {
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil {
		return nil, fmt.Errorf("unknown charset %q: %w", label, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported charset %q", label)
	}
	return enc, nil
}

// ResolveEncoding picks the decoder for a document whose first bytes are
// head. A declared or BOM-implied charset wins. Without one, valid UTF-8
// is read as UTF-8 and anything else with the fallback charset.
func ResolveEncoding(head []byte, fallback string) (encoding.Encoding, string) {
	if label := SniffEncoding(head); label != "" {
		if enc, err := LookupEncoding(label); err == nil {
			return enc, label
		}
	}
	if validUTF8Prefix(head) {
		return unicode.UTF8, "utf-8"
	}
	if enc, err := LookupEncoding(fallback); err == nil {
		return enc, strings.ToLower(fallback)
	}
	return unicode.UTF8, "utf-8"
}

// validUTF8Prefix is utf8.Valid tolerating a rune cut at the end of b.
func validUTF8Prefix(b []byte) bool {
	for cut := 0; cut < utf8.UTFMax && cut <= len(b); cut++ {
		if utf8.Valid(b[:len(b)-cut]) {
			return true
		}
	}
	return false
}

// Decode converts a whole document to UTF-8 text using ResolveEncoding.
// A leading UTF-8 byte order mark is removed.
func Decode(data []byte, fallback string) (string, error) {
	enc, label := ResolveEncoding(data, fallback)
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", label, err)
	}
	return strings.TrimPrefix(string(out), "\uFEFF"), nil
}
