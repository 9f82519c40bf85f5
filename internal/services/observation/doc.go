// Package observation records tokens heard from nearby devices.
//
// Records are only ever appended; duplicates are kept because each sighting
// carries its own time and distance. Pruning removes records older than the
// retention period, which is never allowed to fall below the span a
// still-acceptable report can reach back to.
package observation
