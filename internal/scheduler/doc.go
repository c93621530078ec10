// Package scheduler implements the collector's decision logic as a pure,
// synchronous state machine.
//
// The scheduler never performs I/O. Each call to Process consumes one input
// (timer tick or operator command) and returns the intents an executor must
// carry out: fetch the directory, fetch one instrument, persist state.
//
// State is implicit in model.SchedulerState: two independent timers, a pause
// flag and the round-robin cursor. After every input the new state value is
// compared with the previous one and a PersistSchedulerState intent is
// emitted only when they differ, so a redundant pause request writes nothing.
//
// The priority queue lives in the injected Registry. Dequeuing a priority
// company never moves the round-robin cursor; traversal resumes where it left
// off once the queue drains.
//
// Thread-safety: a Scheduler is not safe for concurrent use. The engine
// serializes all inputs through a single goroutine.
package scheduler
