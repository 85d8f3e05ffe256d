// Package jobs tracks the state of ingestion jobs.
//
// A Tracker holds one core.JobState per submitted batch. The goroutine that
// runs the batch is the only writer for its job; every other caller reads
// through Get, which returns a deep copy. Each mutation is written through
// to a storage.JobRepository so status survives the in-memory cache.
//
// Item stages only move forward through the pipeline order or jump to
// error, and the job percentage never decreases.
package jobs
