// Package http implements the HTTP handlers of the delivery dashboard.
// Handlers stay thin: they parse and validate the request, call the
// dashboard service and format the response.
//
// # Endpoints
//
//	GET  /                             server-rendered dashboard page
//	GET  /api/dashboard/filters        selectable states, categories, payment types and date bounds
//	GET  /api/dashboard/kpis           headline KPIs for the filter
//	GET  /api/dashboard/geo            per-state summary
//	GET  /api/dashboard/categories     category on-time ranking
//	GET  /api/dashboard/charts/{name}  Plotly figure: map, histogram or categories
//	GET  /api/dashboard/orders         paginated fact rows
//	GET  /api/dashboard/export.csv     filtered fact rows as CSV
//	GET  /api/dashboard/export.xlsx    filtered fact rows as an Excel workbook
//	POST /api/dashboard/rebuild        rebuild the fact table from the raw files
//	GET  /api/health[/ready|/live|/detailed]
//	GET  /metrics
//
// # Filters
//
// Every data endpoint accepts the same filter parameters:
//
//	start, end      YYYY-MM-DD, inclusive calendar days on the purchase date
//	state           two-letter state codes, repeated or comma separated
//	category        product categories
//	payment         payment types
//	delivered_only  true/false
//
// # Errors
//
// Failures are written as RFC 7807 problem documents by the shared
// ErrorHandler. Missing raw files answer 503 with the list of absent files;
// the HTML page renders a setup page instead.
package http
