// Package health serves liveness, readiness and version endpoints for
// verdict serve. Readiness aggregates named checks registered by the
// command: a loaded catalog snapshot and a reachable result store.
package health
