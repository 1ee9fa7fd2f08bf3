// Package checkpoint persists batch progress so interrupted runs can
// resume without redoing completed work.
//
// State lives in a SQLite database under the configured state directory.
// Every terminal file transition is written inside its own transaction
// (WAL journal), so the on-disk snapshot is always internally
// consistent. The schema is versioned through embedded migrations; a
// database that cannot be opened or migrated is moved aside and treated
// as "no checkpoint" rather than failing the batch. A flock beside the
// database keeps two runs from interleaving writes.
package checkpoint
