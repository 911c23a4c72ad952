// Package workflow runs the worker loops that drive card assets through the
// OCR, CLASSIFY, and VALUATION stages.
//
// Each of the configured workers claims the oldest queued job, dispatches it
// to the handler registered for its type, and retries failures with linear
// backoff (attempt x retry delay) up to the configured retry budget.
// Non-retryable errors (missing data, validation, unsupported job types) fail
// on the first attempt. A job that exhausts its budget is marked FAILED and
// its asset moves to ERROR with the last error message; handlers themselves
// own every other asset transition.
//
// Stopping the manager stops claiming; jobs already claimed run to a
// terminal status. Jobs left RUNNING by a crashed process are requeued by
// the daemon at start.
package workflow
