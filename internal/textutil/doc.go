// Package textutil provides text processing utilities for token matching and
// filename sanitization.
//
// The primary use cases are:
//   - Tokenizing OCR text and roster names into accent-folded lowercase tokens
//   - Scoring token-set overlap with an F-score of precision and recall
//   - Sanitizing filenames and object keys for thumbnails and exports
package textutil
