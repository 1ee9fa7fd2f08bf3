// Package graph assembles detected relationships into a read-only
// relationship graph and exports it as a JSON document.
package graph
