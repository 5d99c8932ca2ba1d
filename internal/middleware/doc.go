// Package middleware provides HTTP middleware for the conversion API.
//
// It includes:
//   - Request logging in W3C Extended Log Format, with health checks optional
//   - Prometheus request metrics labelled by route template
//
// Both wrap the response in a writer that supports Flush and Hijack, so
// WebSocket upgrades pass through.
package middleware
