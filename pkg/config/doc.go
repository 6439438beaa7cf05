// Package config loads verdict's configuration.
//
// Configuration is read from YAML and layered in this order, later layers
// winning:
//
//  1. Default values (defaults.go)
//  2. Values from the YAML file, with ${VAR} references expanded
//  3. VERDICT_SECTION_FIELD environment variables
//  4. Validation, which reports every invalid field at once
//
// For example VERDICT_STORAGE_BACKEND overrides storage.backend and
// VERDICT_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level.
//
// A minimal file:
//
//	catalog:
//	  path: ./catalog
//	  watch: true
//
//	storage:
//	  backend: sqlite
//	  sqlite:
//	    path: data/verdict.db
//
//	telemetry:
//	  logging:
//	    level: info
//	    format: json
package config
