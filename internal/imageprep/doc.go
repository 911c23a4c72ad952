// Package imageprep shrinks card photos to fit the byte ceilings of vision
// and classification providers, and renders thumbnails.
package imageprep
