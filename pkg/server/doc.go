// Package server runs the operational HTTP endpoint of verdict serve:
// Prometheus metrics, liveness, readiness and version.
//
// Dossier evaluation has no network API; the server only exposes what
// operators and orchestrators need to watch the process. Handlers are
// wrapped with panic recovery and request logging.
package server
