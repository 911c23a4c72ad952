// Package imagestore resolves card image references to bytes and persists
// derived images such as thumbnails, on local disk or in S3.
package imagestore
