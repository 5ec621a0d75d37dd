// Package services implements the business logic behind the dashboard.
// Handlers stay thin: they parse and validate the request, then call a service.
//
// # Services
//
//	DashboardService  owns the in-memory fact table and answers every dashboard query
//	HealthService     liveness, readiness and version information
//
// # Fact table lifecycle
//
// The fact table is loaded lazily on the first request. Concurrent first requests
// share a single build through singleflight. The load path is:
//
//  1. memory, if a previous load succeeded
//  2. the processed cache file, when dashboard.use_cache_file is set
//  3. the raw CSVs, optionally fetched from the configured remote source first
//
// Rebuild forces step 3 and swaps the result in atomically. Readers holding the
// previous slice keep a consistent view because rows are never mutated in place.
//
// # Errors
//
// Services return sentinel errors from this package, loader errors for missing or
// malformed data, and *errors.AppError for fetch failures. The HTTP layer maps all
// of them to RFC 7807 problem responses.
package services
