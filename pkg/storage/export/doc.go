// Package export writes stored evaluations as JSON or CSV for reviewers and
// reporting tools.
//
// The CSV format has one row per rule result; the JSON format writes the
// records as they are stored.
package export
