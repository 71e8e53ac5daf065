// Package writer batches Ready readings into the history store.
//
// Writers use append-only semantics: rows are never updated, and a reading
// whose id is already stored is skipped.
package writer
