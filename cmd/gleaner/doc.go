// Package main hosts the gleaner command-line interface.
//
// The Cobra command tree maps terminal invocations onto the internal
// pipeline components: harvesting, enrichment passes, change-feed sync,
// credit linking, quality scans, queue maintenance, and the resident
// runner. Configuration resolution and logger construction happen once
// per invocation in commandContext so the individual commands stay
// declarative.
package main
