// Package collectibles is the HTTP client for the collectibles recognition
// API: category analysis, per-category identification endpoints, and text
// search.
package collectibles
