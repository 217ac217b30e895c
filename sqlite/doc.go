// Package sqlite implements sendq storage on a client-local SQLite database.
//
// The store provides capability-scoped transactions (sendq.Storage), the
// scheduler's claim queue (sendq.SendQueue) and thread upkeep helpers. Write
// transactions serialize through a store-level mutex, matching SQLite's
// single-writer model.
package sqlite
