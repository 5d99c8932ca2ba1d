// Package preview renders single-frame JPEG previews of media files.
//
// Video frames are grabbed with ffmpeg as PNG on stdout and scaled with
// imaging. JPEG, PNG, GIF and WebP stills are decoded in-process.
package preview
