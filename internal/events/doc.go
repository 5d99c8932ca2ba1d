// Package events is an in-process fan-out of conversion progress and
// completion events, used to feed WebSocket clients.
package events
