// Package tasks runs multi-step operations over the catalog, watchlist and reviews with progress reporting.
//
// # Operations
//
//  1. [Engine.Warmup] : loads the catalog and the signed-in user's watchlist concurrently
//     - Catalog and watchlist fetches run side by side in a [pool.ContextPool]
//     - A catalog failure fails the warm-up; a watchlist failure is reported in the result
//     - Returns counts plus the watchlist resolved to catalog entries
//
//  2. [Engine.BulkExport] : exports several movies with their reviews
//     - Reviews are fetched by a bounded worker pool behind a [rate.Limiter]
//     - One output per movie in the chosen format
//     - A manifest summarizes successes and failures
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for UI rendering.
// Updates use select with default so a slow reader never stalls an operation.
package tasks
