// Package pipeline implements the lead-generation engine: job lifecycle,
// the five-stage runner (scrape, web enrichment, contact enrichment,
// scoring, AI enrichment), progress broadcasting with replay, and the
// registry that owns every job.
//
// The runner is the only writer of job state. Every other component reads
// through immutable snapshots or the per-job event stream, so handlers can
// serve consistent partial results while a job is still running.
package pipeline
