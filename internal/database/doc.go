// Package database persists the sync cache row and the per-thread delivery
// records that keep notifications from being shown twice.
//
// The [Store] interface has two implementations selected at runtime through
// [Config.Driver]:
//   - "bolt" (default): a bbolt file with one bucket per record type
//   - "sqlite": a pure Go SQLite database with embedded migrations
//
// # Cycles
//
// A sync cycle writes the new [model.SyncState] and every delivered
// [model.SeenThread] through [Store.CommitCycle], which applies both in a
// single transaction. A failed commit leaves the previous state untouched.
package database
