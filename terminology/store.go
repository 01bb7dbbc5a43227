package terminology

import (
	"context"
	"errors"
	"strings"
)

// ErrStoreNotInitialized is returned by stores used before Init.
var ErrStoreNotInitialized = errors.New("terminology: store not initialized")

// Entry is one row of the TUSS procedure table.
type Entry struct {
	Code        string `json:"code"        yaml:"code"`
	Description string `json:"description" yaml:"description"`
}

// Store is a keyed table of reference codes.
//
// Implementations must be safe for concurrent use. BulkReplace is atomic:
// readers observe either the whole old table or the whole new one.
type Store interface {
	// Init prepares the backend (open files, run migrations, ping).
	// Calling it more than once is harmless.
	Init(ctx context.Context) error

	// Exists reports whether the code is in the table.
	Exists(ctx context.Context, code string) (bool, error)

	// Count returns the number of distinct codes.
	Count(ctx context.Context) (int, error)

	// BulkReplace discards the current table and stores entries.
	// It returns the number of distinct codes stored.
	BulkReplace(ctx context.Context, entries []Entry) (int, error)
}

// Normalize trims codes and descriptions, drops rows without a code and
// collapses duplicates (the last description wins, the first position is kept).
func Normalize(entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	index := make(map[string]int, len(entries))
	for _, e := range entries {
		code := strings.TrimSpace(e.Code)
		if code == "" {
			continue
		}
		desc := strings.TrimSpace(e.Description)
		if i, ok := index[code]; ok {
			out[i].Description = desc
			continue
		}
		index[code] = len(out)
		out = append(out, Entry{Code: code, Description: desc})
	}
	return out
}
