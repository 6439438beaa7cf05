// Package catalog loads rule catalogs and keeps the active version.
//
// A catalog is one or more YAML files declaring document types, processes
// and rules. Loader parses every file, merges them, builds the field schema
// registry and the rule set, and runs semantic validation; any error rejects
// the whole catalog. The result is an immutable Snapshot.
//
// Manager holds the active Snapshot and swaps it atomically on reload. A
// catalog that fails to load never replaces a working one. Catalogs are read
// from the filesystem, optionally hot-reloaded through fsnotify, or from a
// git repository polled with go-git.
//
//	loader := catalog.NewLoader(catalog.LoaderConfig{Checker: evaluation.ExpressionChecker{}}, logger)
//	mgr, err := catalog.NewManager(cfg.Catalog, loader, logger, catalog.WithRecorder(collector))
//	if err := mgr.Load(ctx); err != nil { ... }
//	go mgr.Watch(ctx)
package catalog
