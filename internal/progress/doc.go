// Package progress turns ffmpeg progress output into ConversionProgress
// events.
//
// Two sources are supported. ParseProgressLine matches the stats line
// ffmpeg writes to stderr (split with ScanLines, since the line ends in a
// carriage return). ParseKeyValues parses the key=value file written by
// -progress, which PollSidecar re-reads in full on a fixed interval.
//
// The fraction is frame/totalFrames when the total is known and
// time/duration otherwise. It stays in [0,1], never decreases, and only
// reaches 1 once completion is confirmed. The average frame rate is the
// slope across a sliding RateWindow. Throttle limits emission to one
// event per interval and Monitor ties the pieces together for one job.
package progress
