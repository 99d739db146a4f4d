// Package history persists a ledger of pipeline runs in SQLite.
//
// Each run is recorded when it starts (status "running") and updated when it
// finishes with its outcome, the failing stage and chapter, the error text,
// and the published artifact path. Runs that never finish (killed process)
// stay "running" and are shown as such by the history command.
//
// The schema is applied from embedded migrations/*.sql files tracked in a
// schema_migrations table.
package history
