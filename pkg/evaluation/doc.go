// Package evaluation evaluates validation rules against a dossier snapshot.
//
// # Condition Evaluation
//
// Conditions are tri-state. An atom is indeterminate when a field it reads
// has no value or when its operands cannot be compared; a conjunction is
// false as soon as one atom is false, indeterminate if any atom is
// indeterminate, and true otherwise. This holds for the emptiness operators
// too: is_empty and is_not_empty only judge a field that has a value.
//
// Expression-mode rules are compiled with CEL. Each document type is bound to
// a variable named by its lower-case code, and a few helpers are available:
//
//	days_between(devis.date_devis, cdc.date_signature) >= 0
//	abs(devis.prime_cee - facture.prime_cee) <= 1.0
//	round(facture.total_ttc, 2) == 1500.0
//	validate_siret(devis.siret)
//
// # Rule Verdicts
//
//	condition true          -> passed
//	condition false         -> the rule's severity (error, warning, info)
//	condition indeterminate -> not_applicable
//
// Cross-document rules whose referenced document types are not all present
// are not_applicable. A malformed rule only affects its own result.
//
// The engine is stateless: the same snapshot and catalog always produce the
// same ResultSet, including result ids and timestamps.
package evaluation
