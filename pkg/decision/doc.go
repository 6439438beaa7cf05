// Package decision aggregates rule results and required-field confidences
// into a dossier recommendation: auto_approve, send_to_review or auto_reject.
//
// The policy is conservative. Only rejection and approval are automatic, and
// approval requires no errors, no warnings, every required field present and
// every required field at or above the process confidence threshold.
// not_applicable and info results never influence the outcome.
package decision
