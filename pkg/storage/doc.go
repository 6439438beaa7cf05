// Package storage persists the latest evaluation of each dossier together
// with a history of past evaluations.
//
// A dossier's RuleResult set and Decision are always replaced wholesale:
// Replace swaps the complete record and appends one history entry. A record
// for an older input version never replaces a newer one.
//
// Two backends are provided. MemoryStore is for tests and one-shot CLI runs;
// SQLiteStore persists to a single SQLite file in WAL mode using the pure Go
// modernc.org/sqlite driver.
//
//	store, err := storage.NewSQLiteStore(&storage.SQLiteConfig{Path: "data/verdict.db"})
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
package storage
