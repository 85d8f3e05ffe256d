// Package reembed recomputes the embedding vectors of every indexed recipe,
// typically after switching embedding models.
//
// Recipes are walked in key order and processed in batches. Each batch is
// embedded under a retry policy, normalized for cosine similarity and
// written back with a single bulk upsert. Progress is reported to a writer.
package reembed
