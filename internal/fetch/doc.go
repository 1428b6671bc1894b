// Package fetch provides the shared request machinery for upstream metadata
// sources: failure classification, adaptive pacing, bounded retries behind a
// circuit breaker, and width-bounded batch execution.
package fetch
