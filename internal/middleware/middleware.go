// Package middleware provides HTTP middleware for the API server:
// request IDs, request-scoped logging, Prometheus metrics and body
// size limits.
package middleware

// contextKey is a private type for context values set by this package,
// preventing collisions with other packages' keys.
type contextKey string

// Common size limits
const (
	KB = 1024
	MB = 1024 * KB
)
