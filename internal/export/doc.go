// Package export renders batch valuation reports as XLSX workbooks.
package export
