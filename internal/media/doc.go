// Package media holds the data model shared by the probe client, the
// command builder and the conversion manager.
//
// It defines:
//   - MediaInfo, AudioTrack and SubtitleTrack as produced by ffprobe parsing
//   - ConversionOptions with the audio and subtitle strategies
//   - ConversionProgress events (progress is a fraction in [0,1])
//   - ConversionResult and the FailureReason taxonomy
//   - GpuCapabilities and the CodecFamily classification of encoders
package media
