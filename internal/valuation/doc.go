// Package valuation implements the VALUATION stage: a median price estimate
// from marketplace listings, the READY transition, and the batch recount.
package valuation
