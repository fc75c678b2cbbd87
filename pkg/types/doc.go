// Package types defines the shared data model for the synchronization
// pipeline: normalized documents, derived chunks, and the metadata keys
// chunks carry into the vector index.
package types
