// Package bgremove wraps a remote background-removal service used when
// rendering card thumbnails. Unconfigured clients return the input image.
package bgremove
