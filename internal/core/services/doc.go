// Package services implements the core application services behind the
// driving ports: the ingestion orchestrator that pulls conversation
// batches through rate limiting, dedup, media normalization and indexing,
// and the read-only query façade over the index and metadata store.
package services
