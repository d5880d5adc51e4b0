// Package ingestion turns normalized conversation exports into stored,
// searchable records.
//
// The Pipeline validates each conversation, fills in a summary and topics
// via the AI provider when the export lacks them, builds the embedding
// document, embeds it (reusing cached vectors for unchanged content), and
// writes the conversation record plus its vector entries. Long
// conversations are additionally indexed as content chunks grouped under
// the conversation id.
//
// Batch ingestion fans work out over a worker pool and can trigger a full
// reprocessing run once the batch lands.
package ingestion
