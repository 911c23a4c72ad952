// Package cache holds short-lived provider lookups (valuation searches) in
// Redis when configured.
package cache
