// Package ocr implements the OCR pipeline stage. It loads the card image,
// fits it to the vision provider's size ceiling, derives attributes and
// comparison links from the recognized text, renders a thumbnail, and hands
// the asset to classification or valuation in one transaction.
package ocr
