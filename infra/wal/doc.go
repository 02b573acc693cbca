// Package wal implements the append-only event journal: a segmented,
// CRC-framed log of accepted submissions, cancellations, and trades.
//
// The journal is an audit tape, not a recovery log. The book is purely
// in-memory and is never rebuilt from it; readers exist for offline
// inspection and for the tests.
package wal
