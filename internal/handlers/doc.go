// Package handlers provides the HTTP and WebSocket API of the media
// converter.
//
// It includes handlers for:
//   - Probing files and listing ffmpeg capabilities
//   - Starting, listing and cancelling conversions
//   - Streaming conversion events over WebSockets
//   - Conversion history
//   - Output filename generation and title cleanup
//   - Preview frames
//   - Health checks and version information
package handlers
