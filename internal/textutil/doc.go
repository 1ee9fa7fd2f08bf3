// Package textutil provides text processing utilities shared by the
// extraction and relationship packages.
//
// The primary use cases are:
//   - Tokenizing text into comparable lowercase terms
//   - Computing Jaccard overlap between string sets
//   - Computing normalized edit-distance similarity between short strings
//   - Sanitizing filenames and path segments for safe filesystem use
//
// Tokenization lowercases text, folds diacritics to their ASCII base
// characters, splits on non-alphanumeric characters, and filters tokens
// shorter than 3 characters.
package textutil
