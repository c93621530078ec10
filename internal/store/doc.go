// Package store provides SQLite-backed durable storage for the collector.
//
// The store keeps:
//   - the id sequence from which blocks of ids are reserved
//   - the scheduler snapshot and per-service pause flags
//   - instruments, logically deleted by setting obsoleted_at
//   - raw report versions; a revision obsoletes the previous version and
//     inserts a new current one, so history is never overwritten
//   - price/share-count snapshots, rotated on every instrument fetch
//   - an outbox of raw-data-changed events
//
// # Atomicity
//
// Every exported write runs in one transaction. ApplyReportsDelta commits
// obsoletes, inserts, updates, price rotation and event emission together or
// not at all, so a cancelled or failed apply can be retried wholesale.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Reads return rows in id order.
package store
