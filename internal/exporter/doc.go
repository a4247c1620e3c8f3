// Package exporter renders finished lead sets as downloadable CSV and
// Excel workbooks with a fixed, spreadsheet-friendly column order.
package exporter
