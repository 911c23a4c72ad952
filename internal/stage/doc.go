// Package stage defines the contract between the workflow manager and the
// OCR, CLASSIFY, and VALUATION handlers, plus the shared atomic-commit helper
// every handler uses to persist results and enqueue its successor.
package stage
