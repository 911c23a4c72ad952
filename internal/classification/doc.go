// Package classification implements the CLASSIFY stage and the aggregator
// behind it.
//
// The aggregator sends the card image, shrunk to the configured byte
// ceiling, to the provider's analyze endpoint to learn the card category and
// whether it is slabbed. It then walks the identification endpoints in
// cascade order until one recognizes the card, runs a text search over the
// OCR text, pools every candidate, and scores them against the OCR tokens.
// Provider failures never fail the stage; they degrade the snapshot.
package classification
