// Package model provides the data model shared by the collector packages.
//
// This package contains type definitions and the value semantics of raw
// report data only. All other internal packages import model; model imports
// nothing internal.
//
// Key design constraints:
//   - Report values are decimals (shopspring/decimal), never floats
//   - Report field keys are stored normalized: NFC, trimmed, upper case
//   - SchedulerState is a plain value; callers compare snapshots instead of
//     tracking dirtiness
//   - Instruments and reports are never hard-deleted, only obsoleted
package model
