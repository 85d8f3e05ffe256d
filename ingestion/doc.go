// Package ingestion turns batches of recipe references into indexed recipes.
//
// The Orchestrator accepts a batch, registers a job with the tracker and
// returns its ID immediately. A bounded worker pool then walks each item
// through the stage pipeline:
//   - download (acquire media, caption and any stored recipe)
//   - extract_audio and stt (skipped when there is no audio)
//   - parse_recipe (structured extraction, images and palette)
//
// Every external call goes through a retry policy with its own timeout.
// A failed item is recorded in BatchErrors and the batch moves on; at the
// end all produced recipes are written to the index in a single batch and
// the job is finalized as completed if anything was indexed.
package ingestion
