// Verdict validates CEE energy-savings-certificate dossiers.
//
// It loads a catalog of document types, processes and validation rules,
// evaluates dossiers against it and recommends auto_approve, send_to_review
// or auto_reject.
//
// Usage:
//
//	# Check a catalog
//	verdict lint catalog/
//
//	# Evaluate dossier files against a catalog
//	verdict evaluate --catalog catalog/ dossiers/*.yaml
//
//	# Run as a daemon with hot reload, metrics and health endpoints
//	verdict serve --config verdict.yaml --dossiers inbox/
//
//	# Inspect stored results
//	verdict results show D-2024-0042
//	verdict results export --format csv
package main

func main() {
	Execute()
}
