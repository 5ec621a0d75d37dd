// Package middleware holds the HTTP middleware chain of the dashboard server:
// request IDs, tracing and HTTP metrics, rate limiting, request timeouts,
// security headers, audit logging, and query validation helpers.
package middleware
