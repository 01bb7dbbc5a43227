// Package terminology stores the TUSS reference table used by the
// reference-existence rule.
//
// The package provides:
//   - MemoryStore: an in-process table swapped atomically on import
//   - SQLiteStore: a persistent table managed with embedded goose migrations
//   - RedisStore: a hash shared between processes, replaced via RENAME
//   - CachedStore: an LRU decorator for any Store
//   - ReadCSV / ReadJSON: table importers tolerant of Latin-1 exports
//
// Example usage:
//
//	store := terminology.NewMemoryStore()
//	entries, err := terminology.ReadCSV(file)
//	if err != nil {
//	    return err
//	}
//	n, err := store.BulkReplace(ctx, entries)
//
//	ok, err := store.Exists(ctx, "10101012")
package terminology
