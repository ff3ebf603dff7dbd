// Package ingestion runs submissions and fetched pages through the engine
// on a bounded worker pool.
//
// The Pipeline type manages two flows:
//   - Submissions: each one is inserted, queried and fused into a report
//   - Fetched pages: tuples from the fetch collaborator are indexed as
//     candidate evidence without producing a report
//
// Work is executed on an ants pool so a burst of submissions never spawns
// more than the configured number of workers. Each submission's pipeline
// runs independently; failures are reported per item and never abort the
// rest of a batch.
package ingestion
