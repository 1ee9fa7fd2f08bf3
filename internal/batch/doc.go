// Package batch orchestrates a full run: file discovery, checkpoint
// seeding, the parallel per-file processing pool, and the relationship
// detection phase that follows once every file has reached a terminal
// state.
package batch
