// Package records defines the per-file processing state owned by the
// batch orchestrator.
//
// A FileRecord moves pending → processing → completed|failed. The two
// terminal states never transition again. The in-memory Table is the
// only structure mutated by multiple workers; claiming a record is an
// atomic compare-and-set on its status, so a file can never be owned by
// two workers at once.
package records
