package media

import "strings"

// AudioStrategy decides which audio streams reach the output and how.
type AudioStrategy string

const (
	// AudioCopyAll maps every audio stream and stream-copies it.
	AudioCopyAll AudioStrategy = "copy_all"
	// AudioConvertAll maps every audio stream and re-encodes it.
	AudioConvertAll AudioStrategy = "convert_all"
	// AudioFirstTrack keeps a single track, the requested index or the
	// first audio stream.
	AudioFirstTrack AudioStrategy = "first_track"
	// AudioExplicitIndex keeps exactly the stream at AudioTrackIndex.
	AudioExplicitIndex AudioStrategy = "explicit_index"
)

// Valid reports whether s is one of the known audio strategies.
func (s AudioStrategy) Valid() bool {
	switch s {
	case AudioCopyAll, AudioConvertAll, AudioFirstTrack, AudioExplicitIndex:
		return true
	default:
		return false
	}
}

// SubtitleStrategy decides what happens to subtitle streams.
type SubtitleStrategy string

const (
	// SubtitleCopyAll maps every subtitle stream.
	SubtitleCopyAll SubtitleStrategy = "copy_all"
	// SubtitleBurnIn renders one subtitle stream into the video.
	SubtitleBurnIn SubtitleStrategy = "burn_in"
	// SubtitleIgnore drops all subtitles.
	SubtitleIgnore SubtitleStrategy = "ignore"
	// SubtitleExplicitIndex keeps exactly the stream at SubtitleTrackIndex.
	SubtitleExplicitIndex SubtitleStrategy = "explicit_index"
)

// Valid reports whether s is one of the known subtitle strategies.
func (s SubtitleStrategy) Valid() bool {
	switch s {
	case SubtitleCopyAll, SubtitleBurnIn, SubtitleIgnore, SubtitleExplicitIndex:
		return true
	default:
		return false
	}
}

// CodecFamily groups video encoders by the flags they accept.
type CodecFamily string

const (
	FamilySoftware     CodecFamily = "software"
	FamilyNVENC        CodecFamily = "nvenc"
	FamilyQSV          CodecFamily = "qsv"
	FamilyVAAPI        CodecFamily = "vaapi"
	FamilyVideoToolbox CodecFamily = "videotoolbox"
	FamilyAMF          CodecFamily = "amf"
	FamilyCopy         CodecFamily = "copy"
	FamilyOther        CodecFamily = "other"
)

// HardwareFamilies lists the families detected from ffmpeg's encoder list.
var HardwareFamilies = []CodecFamily{FamilyNVENC, FamilyQSV, FamilyVAAPI, FamilyVideoToolbox, FamilyAMF}

// ClassifyCodec returns the family of an ffmpeg video encoder name.
func ClassifyCodec(codec string) CodecFamily {
	c := strings.ToLower(strings.TrimSpace(codec))
	switch {
	case c == "copy":
		return FamilyCopy
	case strings.Contains(c, "nvenc"):
		return FamilyNVENC
	case strings.Contains(c, "qsv"):
		return FamilyQSV
	case strings.Contains(c, "vaapi"):
		return FamilyVAAPI
	case strings.Contains(c, "videotoolbox"):
		return FamilyVideoToolbox
	case strings.Contains(c, "amf"):
		return FamilyAMF
	case strings.HasPrefix(c, "lib"):
		return FamilySoftware
	default:
		return FamilyOther
	}
}

// IsHardware reports whether f is a GPU encoder family.
func (f CodecFamily) IsHardware() bool {
	switch f {
	case FamilyNVENC, FamilyQSV, FamilyVAAPI, FamilyVideoToolbox, FamilyAMF:
		return true
	default:
		return false
	}
}
