package terminology

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// toUTF8 returns data as UTF-8. Input that is not valid UTF-8 is assumed to
// be ISO-8859-1, the usual encoding of ANS table exports.
func toUTF8(data []byte) ([]byte, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return data, nil
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("decode latin-1: %w", err)
	}
	return out, nil
}

// ReadCSV reads a code table with the code in the first column and an
// optional description in the second. The delimiter (';', ',' or tab) is
// detected from the first line, and a header row is skipped when its first
// field contains no digit.
func ReadCSV(r io.Reader) ([]Entry, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	data, err := toUTF8(raw)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = detectDelimiter(data)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	var entries []Entry
	first := true
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		if len(rec) == 0 {
			continue
		}
		if first {
			first = false
			if !strings.ContainsAny(rec[0], "0123456789") {
				continue
			}
		}
		e := Entry{Code: rec[0]}
		if len(rec) > 1 {
			e.Description = rec[1]
		}
		entries = append(entries, e)
	}
	return Normalize(entries), nil
}

func detectDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	best, bestN := ',', 0
	for _, d := range []rune{';', '\t', ','} {
		if n := bytes.Count(line, []byte(string(d))); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}

// ReadJSON reads either an array of {"code","description"} objects or an
// object mapping codes to descriptions.
func ReadJSON(r io.Reader) ([]Entry, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read json: %w", err)
	}
	data, err := toUTF8(raw)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)

	if len(data) > 0 && data[0] == '{' {
		var m map[string]string
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("read json: %w", err)
		}
		entries := make([]Entry, 0, len(m))
		for code, desc := range m {
			entries = append(entries, Entry{Code: code, Description: desc})
		}
		sortEntries(entries)
		return Normalize(entries), nil
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("read json: %w", err)
	}
	return Normalize(entries), nil
}

// LoadFile reads a table file, choosing the format from its extension
// (.json; anything else is read as CSV).
func LoadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open table: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		return ReadJSON(f)
	}
	return ReadCSV(f)
}
