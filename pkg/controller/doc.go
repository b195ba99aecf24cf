// Package controller contains HTTP middlewares and helper handlers used by
// the listener's metrics server.
//
// Provided middlewares:
//   - WithLogger: Tags each request with an ID echoed in X-Request-Id and logs one access line.
//
// Provided helpers:
//   - RegisterPprof: Exposes net/http/pprof handlers under /debug/pprof/.
//   - Healthz: Liveness check.
package controller
