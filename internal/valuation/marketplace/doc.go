// Package marketplace is the HTTP client for marketplace listing search
// (eBay Browse item_summary/search).
package marketplace
