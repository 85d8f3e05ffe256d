// Package indexing writes finished recipes into the search index.
//
// An Engine is shared by every job in the process. It owns a KeyGuard so
// that two jobs producing the same recipe key never write it at the same
// time: the second caller skips the key instead of racing the first.
//
// Writes go through one atomic BulkUpsert. When that fails, or reports
// fewer records than it was given, the engine falls back to writing each
// record on its own so one bad record cannot sink its siblings.
package indexing
