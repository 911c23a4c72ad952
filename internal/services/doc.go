// Package services defines shared utilities consumed by the pipeline stage
// handlers and external provider integrations.
//
// Key responsibilities:
//   - Context helpers that stamp asset IDs, job IDs, stage names, worker IDs,
//     and correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that let the worker retry
//     policy tell transient provider failures from permanent missing-data errors.
//
// Use these helpers when wiring new stage logic so operational behaviour (error
// handling, observability, retries) stays uniform across the pipeline.
package services
