// Command convert runs ffmpeg conversions from the terminal.
//
// It supports the following operations:
//   - run: Convert one file in the foreground with a progress bar
//   - probe: Print the normalized metadata of a media file as JSON
//   - caps: Print the hardware encoder families ffmpeg supports
//   - formats: List the container formats ffmpeg can write
//   - history: List recent conversions recorded by the service
//
// Usage:
//
//	convert <command> [flags]
//
// Examples:
//
//	convert run -i movie.mkv -o movie.mp4 -vcodec libx264 -crf 20
//	convert run -i movie.mkv -o movie.webm -vcodec libvpx-vp9 -audio copy_all -subs copy_all
//	convert probe movie.mkv
//	convert history -limit 10
//
// Pressing Ctrl+C during run stops ffmpeg: it gets SIGTERM first and is
// killed if it does not exit within the cancel grace period. The partial
// output file is left in place.
//
// Environment:
//
//	FFMPEG_PATH   - ffmpeg binary (default: ffmpeg)
//	FFPROBE_PATH  - ffprobe binary (default: ffprobe)
//	WORK_DIR      - Directory for sidecar progress files
//	DATABASE_DIR  - Path to database directory, used by history (default: /database)
//	LOG_LEVEL     - Logging level (default: warn for this command)
package main
