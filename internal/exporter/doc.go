// Package exporter writes the filtered fact table to disk or to an HTTP response.
//
// CSVWriter handles the low-level CSV concerns: headers, appends, streaming, and
// the UTF-8 BOM Excel needs to detect the encoding. FactExporter renders fact rows
// in a fixed column order as CSV or as an XLSX workbook.
//
// Example usage:
//
//	exp := exporter.NewFactExporter(paths)
//	path, err := exp.ExportFile("fact_orders.xlsx", rows)
package exporter
