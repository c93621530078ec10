// Package engine drives the collector scheduler.
//
// The scheduler is a pure state machine; the engine is the impure shell
// around it. It owns the only goroutine that touches the scheduler, feeds it
// inputs one at a time and carries out the intents it returns through an
// Executor.
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
// Inputs arrive concurrently from the ticker and from operator calls
// (Submit). All of them are serialized through one FIFO queue and processed
// by Run in a single goroutine, so timer handling and commands never
// interleave and the scheduler needs no locking.
//
// Event Processing Flow:
//  1. Ticker or Submit enqueues a request
//  2. Run dequeues requests one at a time
//  3. The scheduler turns the input into intents
//  4. Each intent is executed inline, bounded by the operation timeout
//  5. Submit callers receive the scheduler output and any intent failures
//
// Ticks are not enqueued while the collector is paused; a tick that slips
// through is a no-op in the scheduler anyway.
//
// ERROR HANDLING:
// A failed intent is logged and reported to the caller (if any); the loop
// keeps running. A failed fetch is retried naturally when its timer next
// expires.
package engine
