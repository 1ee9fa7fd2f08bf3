// Package discovery walks a root directory and turns matching files into
// pending file records for the batch orchestrator.
package discovery
