// Package extract implements the per-file processing stage: it reads a
// bounded prefix of each file, derives metadata (entities, key terms,
// title, content hash, structure counts), and writes a JSON artifact to
// the output directory.
package extract
