// Package logging wraps log/slog with the handlers and field conventions
// used across Loom.
//
// Two output formats are supported: a pretty console handler for
// interactive use (color when stdout is a terminal) and a JSON handler
// for machine consumption. Standardized field keys (component, batch_id,
// file_id, strategy) keep log lines greppable across packages.
package logging
