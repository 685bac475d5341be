// Package store persists run summaries in SQLite.
//
// Two tables:
//   - runs: one row per finished run with its counts
//   - scenario_results: one row per executed scenario, with turns and rule
//     results stored as JSON
//
// Runs are written once, in a single transaction, and never updated.
// Listing order is newest first: started_at DESC, then id DESC. Run ids
// are UUIDv7, so the id tiebreak is also chronological.
package store
