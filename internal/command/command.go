package command

import (
	"path/filepath"
	"strconv"
	"strings"

	"media-converter/internal/media"
)

// VAAPIDevice is the render node used for VAAPI encodes.
const VAAPIDevice = "/dev/dri/renderD128"

// BuildArgs constructs the ffmpeg argument vector for a conversion. It is
// pure: the same options and capabilities always produce the same slice.
// The vector never includes the binary name, ends with "-y", the progress
// flag and the output path, and the output path is always last.
func BuildArgs(opts media.ConversionOptions, caps media.GpuCapabilities) []string {
	codec := ResolveVideoCodec(opts.VideoCodec, caps)
	family := media.ClassifyCodec(codec)
	ext := strings.ToLower(filepath.Ext(opts.OutputPath))

	args := make([]string, 0, 48)

	// --- Preamble ---
	args = append(args, "-hide_banner", "-nostdin")
	if family == media.FamilyVAAPI {
		args = append(args, "-vaapi_device", VAAPIDevice)
	}

	// --- Input ---
	args = append(args, "-i", opts.InputPath)

	// --- Video filter chain ---
	if vf := videoFilters(opts, family); vf != "" {
		args = append(args, "-vf", vf)
	}

	// --- Stream maps and codecs ---
	args = appendVideo(args, opts, codec, family)
	args = appendAudio(args, opts)
	args = appendSubtitles(args, opts, ext)

	// --- Container opts ---
	if isMP4Family(ext) {
		args = append(args, "-movflags", "+faststart")
	}

	// --- Overwrite, progress and output ---
	args = append(args, "-y")
	args = appendProgress(args, opts)
	args = append(args, opts.OutputPath)

	return args
}

func appendVideo(args []string, opts media.ConversionOptions, codec string, family media.CodecFamily) []string {
	if opts.Source != nil && opts.Source.HasVideo() {
		args = append(args, "-map", "0:"+strconv.Itoa(opts.Source.VideoStreamIndex))
	} else {
		args = append(args, "-map", "0:V:0?")
	}

	args = append(args, "-c:v", codec)

	if flag, value := ResolvePreset(codec, opts.Preset); flag != "" {
		args = append(args, flag, value)
	}

	if opts.CRF != nil {
		args = appendQuality(args, family, codec, *opts.CRF)
	}

	if opts.Profile != "" && family != media.FamilyCopy {
		args = append(args, "-profile:v", opts.Profile)
	}
	if opts.Tune != "" && takesTune(codec, family) {
		args = append(args, "-tune", opts.Tune)
	}
	return args
}

// takesTune reports whether the encoder accepts x264-style -tune names.
func takesTune(codec string, family media.CodecFamily) bool {
	if family == media.FamilyNVENC {
		return true
	}
	c := strings.ToLower(codec)
	return strings.HasPrefix(c, "libx264") || strings.HasPrefix(c, "libx265")
}

// appendQuality emits the constant-quality flag of the encoder family:
// -crf for software encoders, the vendor equivalent for hardware ones.
func appendQuality(args []string, family media.CodecFamily, codec string, q int) []string {
	v := strconv.Itoa(q)
	switch family {
	case media.FamilySoftware:
		args = append(args, "-crf", v)
		if strings.HasPrefix(codec, "libvpx") {
			// libvpx only honors -crf as constant quality with a zero target bitrate.
			args = append(args, "-b:v", "0")
		}
	case media.FamilyNVENC:
		args = append(args, "-cq", v)
	case media.FamilyQSV:
		args = append(args, "-global_quality", v)
	case media.FamilyVAAPI:
		args = append(args, "-qp", v)
	case media.FamilyAMF:
		args = append(args, "-rc", "cqp", "-qp_i", v, "-qp_p", v)
	case media.FamilyVideoToolbox:
		args = append(args, "-q:v", v)
	case media.FamilyCopy, media.FamilyOther:
	}
	return args
}

func videoFilters(opts media.ConversionOptions, family media.CodecFamily) string {
	var filters []string
	if opts.SubtitleStrategy == media.SubtitleBurnIn && family != media.FamilyCopy {
		filters = append(filters, burnInFilter(opts))
	}
	if family == media.FamilyVAAPI {
		filters = append(filters, "format=nv12", "hwupload")
	}
	return strings.Join(filters, ",")
}

// burnInFilter renders a subtitle stream of the input onto the video. The
// subtitles filter counts subtitle streams only, so the absolute index is
// translated through the probed track list. Options that passed
// CheckSource always resolve; without an index the first stream is used.
func burnInFilter(opts media.ConversionOptions) string {
	rel := 0
	if opts.SubtitleTrackIndex != nil {
		rel, _ = opts.Source.SubtitleOrdinal(*opts.SubtitleTrackIndex)
	}
	return "subtitles=filename=" + escapeFilterPath(opts.InputPath) + ":si=" + strconv.Itoa(rel)
}

var (
	optionEscaper = strings.NewReplacer(`\`, `\\`, `:`, `\:`, `'`, `\'`)
	graphEscaper  = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `[`, `\[`, `]`, `\]`, `,`, `\,`, `;`, `\;`)
)

// escapeFilterPath applies ffmpeg's two escaping levels: the filter option
// value, then the filtergraph description.
func escapeFilterPath(path string) string {
	return graphEscaper.Replace(optionEscaper.Replace(path))
}

func appendAudio(args []string, opts media.ConversionOptions) []string {
	codec := opts.AudioCodec
	if codec == "" {
		codec = media.DefaultAudioCodec
	}
	bitrate := opts.AudioBitrate
	if bitrate == "" {
		bitrate = media.DefaultAudioBitrate
	}

	switch opts.AudioStrategy {
	case media.AudioCopyAll:
		return append(args, "-map", "0:a?", "-c:a", "copy")
	case media.AudioConvertAll:
		args = append(args, "-map", "0:a?")
	case media.AudioFirstTrack, media.AudioExplicitIndex:
		args = append(args, "-map", singleStream(opts.AudioTrackIndex, "0:a:0?"))
	default:
		// Unvalidated options: keep the first audio track.
		args = append(args, "-map", singleStream(opts.AudioTrackIndex, "0:a:0?"))
	}

	args = append(args, "-c:a", codec)
	if codec != "copy" {
		args = append(args, "-b:a", bitrate)
	}
	return args
}

func appendSubtitles(args []string, opts media.ConversionOptions, ext string) []string {
	switch opts.SubtitleStrategy {
	case media.SubtitleCopyAll:
		args = append(args, "-map", "0:s?")
		if codec, ok := textSubtitleCodec(ext); ok {
			return append(args, "-c:s", codec)
		}
		return append(args, "-c:s", "copy")
	case media.SubtitleExplicitIndex:
		if opts.SubtitleTrackIndex == nil {
			return append(args, "-sn")
		}
		codec, ok := textSubtitleCodec(ext)
		if !ok {
			codec = "srt"
		}
		return append(args, "-map", singleStream(opts.SubtitleTrackIndex, ""), "-c:s", codec)
	case media.SubtitleBurnIn, media.SubtitleIgnore:
		return append(args, "-sn")
	default:
		return append(args, "-sn")
	}
}

// textSubtitleCodec reports the subtitle codec a container forces. MP4
// family and WebM outputs cannot carry bitmap or SRT/ASS streams.
func textSubtitleCodec(ext string) (string, bool) {
	switch {
	case isMP4Family(ext):
		return "mov_text", true
	case ext == ".webm":
		return "webvtt", true
	default:
		return "", false
	}
}

func isMP4Family(ext string) bool {
	switch ext {
	case ".mp4", ".mov", ".m4v":
		return true
	default:
		return false
	}
}

func singleStream(index *int, fallback string) string {
	if index == nil {
		return fallback
	}
	return "0:" + strconv.Itoa(*index)
}

func appendProgress(args []string, opts media.ConversionOptions) []string {
	if opts.ProgressMode == media.ProgressSidecar && opts.SidecarPath != "" {
		return append(args, "-nostats", "-progress", opts.SidecarPath)
	}
	return append(args, "-stats")
}
