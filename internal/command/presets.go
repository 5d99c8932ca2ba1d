package command

import (
	"strconv"
	"strings"

	"media-converter/internal/media"
)

// DefaultPreset is the software preset used when none is requested.
const DefaultPreset = "medium"

// nvencPresets maps x264-style names onto NVENC's p1 (fastest) to p7
// (slowest) scale.
var nvencPresets = map[string]string{
	"ultrafast": "p1",
	"superfast": "p1",
	"veryfast":  "p2",
	"faster":    "p3",
	"fast":      "p3",
	"medium":    "p4",
	"slow":      "p5",
	"slower":    "p6",
	"veryslow":  "p7",
}

// qsvPresets clamps names QSV does not know onto its fastest preset.
var qsvPresets = map[string]string{
	"ultrafast": "veryfast",
	"superfast": "veryfast",
	"veryfast":  "veryfast",
	"faster":    "faster",
	"fast":      "fast",
	"medium":    "medium",
	"slow":      "slow",
	"slower":    "slower",
	"veryslow":  "veryslow",
}

// amfQuality maps names onto AMF's three-level -quality option.
var amfQuality = map[string]string{
	"ultrafast": "speed",
	"superfast": "speed",
	"veryfast":  "speed",
	"faster":    "speed",
	"fast":      "balanced",
	"medium":    "balanced",
	"slow":      "quality",
	"slower":    "quality",
	"veryslow":  "quality",
}

// svtav1Presets maps x264-style names onto SVT-AV1's numeric scale, where
// lower is slower. medium lands on 8, the encoder's usual default.
var svtav1Presets = map[string]string{
	"ultrafast": "12",
	"superfast": "11",
	"veryfast":  "10",
	"faster":    "10",
	"fast":      "9",
	"medium":    "8",
	"slow":      "6",
	"slower":    "4",
	"veryslow":  "2",
}

// ResolvePreset returns the flag and value that express preset for the
// given encoder. An empty flag means the encoder takes no preset. Values
// the tables do not know are passed through unchanged so callers can
// supply vendor-native names such as "p6" directly.
func ResolvePreset(codec, preset string) (flag, value string) {
	name := strings.ToLower(strings.TrimSpace(preset))
	if name == "" {
		name = DefaultPreset
	}

	switch media.ClassifyCodec(codec) {
	case media.FamilySoftware:
		return softwarePreset(strings.ToLower(strings.TrimSpace(codec)), name)
	case media.FamilyNVENC:
		return "-preset", lookup(nvencPresets, name)
	case media.FamilyQSV:
		return "-preset", lookup(qsvPresets, name)
	case media.FamilyAMF:
		return "-quality", lookup(amfQuality, name)
	case media.FamilyVAAPI, media.FamilyVideoToolbox, media.FamilyCopy, media.FamilyOther:
		return "", ""
	default:
		return "", ""
	}
}

// softwarePreset handles the CPU encoders. Only x264 and x265 understand
// the named presets; SVT-AV1 wants a number and libvpx/libaom have no
// preset option at all.
func softwarePreset(codec, name string) (string, string) {
	switch {
	case strings.HasPrefix(codec, "libx264"), strings.HasPrefix(codec, "libx265"):
		return "-preset", name
	case codec == "libsvtav1":
		if v, ok := svtav1Presets[name]; ok {
			return "-preset", v
		}
		if n, err := strconv.Atoi(name); err == nil && n >= -2 && n <= 13 {
			return "-preset", name
		}
		return "-preset", svtav1Presets[DefaultPreset]
	default:
		return "", ""
	}
}

func lookup(table map[string]string, name string) string {
	if v, ok := table[name]; ok {
		return v
	}
	return name
}

// SoftwareEquivalent returns the CPU encoder producing the same format as
// a hardware encoder name such as "hevc_nvenc".
func SoftwareEquivalent(codec string) string {
	format, _, _ := strings.Cut(strings.ToLower(codec), "_")
	switch format {
	case "hevc", "h265":
		return "libx265"
	case "av1":
		return "libsvtav1"
	case "vp9":
		return "libvpx-vp9"
	default:
		return "libx264"
	}
}

// ResolveVideoCodec swaps a hardware encoder for its software equivalent
// when the capabilities were probed and the family is not available.
func ResolveVideoCodec(codec string, caps media.GpuCapabilities) string {
	family := media.ClassifyCodec(codec)
	if !family.IsHardware() || !caps.Probed || caps.Supports(family) {
		return codec
	}
	return SoftwareEquivalent(codec)
}
