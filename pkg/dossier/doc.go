// Package dossier coordinates the evaluation of CEE dossiers.
//
// A Coordinator ties the pieces together: the current catalog snapshot, the
// field value store, the rule engine, the decision policy and the result
// store. Every change to a dossier's documents or field values triggers a
// fresh evaluation.
//
// # Supersession
//
// Evaluations of one dossier may overlap, for example when a human correction
// arrives while an extraction-driven run is still in flight. Each run takes a
// start ticket together with its input snapshot. A run commits its results
// only if no run that started after it has committed already; otherwise it
// returns with Superseded set and the stored results stay untouched. The last
// run to start wins, whatever the finishing order.
//
// # Workflow
//
// A dossier is draft until its first evaluation, processing while a run is in
// flight, then awaiting_review, approved or rejected depending on the
// decision outcome.
package dossier
