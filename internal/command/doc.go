// Package command turns ConversionOptions into an ffmpeg argument vector.
//
// BuildArgs has no side effects. It encodes the conversion policies:
//   - hardware encoders fall back to a software equivalent when detection
//     ran and the family is missing
//   - presets are mapped onto each vendor's scale (NVENC p1-p7, QSV, AMF
//     -quality), and families without presets get none
//   - -crf is emitted for software encoders only, the vendor quality flag
//     for hardware encoders only
//   - audio and subtitle strategies select streams by absolute index
//   - MP4-family and WebM outputs get a text subtitle codec instead of
//     stream copy
//
// Every vector ends with -y, the progress flag and the output path.
package command
