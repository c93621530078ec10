// Package collector carries out the scheduler's intents against the data
// source and the durable store.
//
// Collector implements engine.Executor:
//
//   - FetchDirectory: fetch the listing, diff it against the registry,
//     assign ids to new instruments, apply the change in memory, then
//     durably. A failed durable write rolls the registry back.
//   - FetchInstrumentData: fetch one instrument, load its current reports,
//     compute the delta, assign ids and apply the delta atomically.
//   - IgnoreRawReport: validate an operator's conflict resolution against
//     all stored versions, then mark the ignored reports.
//   - PersistSchedulerState, PersistServicePaused: durable snapshots.
//
// Service is the operator surface. Every call goes through the engine's
// queue, so it is serialized with the ticker-driven work.
package collector
