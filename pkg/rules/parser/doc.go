// Package parser reads rule catalogs written in YAML.
//
// A catalog file may declare document types, processes and rules. Any section
// can be omitted, so a catalog can be split across several files (for example
// one file of schemas and one file of rules per process family).
//
// # Catalog Format
//
//	document_types:
//	  - code: DEVIS
//	    name: Devis
//	    category: commercial
//	    fields:
//	      - internal_name: prime_cee
//	        data_type: currency
//	        required: true
//	        confidence_threshold: 90
//
//	processes:
//	  - id: bar-th-171
//	    code: BAR-TH-171
//	    auto_approval_threshold: 92
//	    required_documents:
//	      - {document_type: DEVIS, required: true, min_count: 1, max_count: 1}
//
//	rules:
//	  - code: PRIME_CONSISTENCY
//	    type: cross_document
//	    severity: error
//	    applies_to:
//	      document_types: [DEVIS, FACTURE]
//	    condition:
//	      - field: devis.prime_cee
//	        operator: equals
//	        value_type: field
//	        value: facture.prime_cee
//	    error_message: "Prime {devis.prime_cee} differs from invoice {facture.prime_cee}"
//
// A condition is a list of atoms (or a mapping with a single 'all' key) that
// must all hold. A rule may instead carry an 'expression', evaluated by the
// sandboxed expression interpreter; 'condition' and 'expression' are
// mutually exclusive.
//
// Parsing reports structural problems only. Resolving field paths against
// document types is done by the validator package.
package parser
