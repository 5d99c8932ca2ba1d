package probe

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"media-converter/internal/media"
)

// --- ffprobe JSON wire types ---

type ffprobeOutput struct {
	Format  ffprobeFormat    `json:"format"`
	Streams *[]ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Filename   string     `json:"filename"`
	FormatName string     `json:"format_name"`
	Duration   flexString `json:"duration"`
	Size       flexString `json:"size"`
	BitRate    flexString `json:"bit_rate"`
}

type ffprobeStream struct {
	Index        int               `json:"index"`
	CodecName    string            `json:"codec_name"`
	CodecType    string            `json:"codec_type"`
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	RFrameRate   string            `json:"r_frame_rate"`
	AvgFrameRate string            `json:"avg_frame_rate"`
	NbFrames     flexString        `json:"nb_frames"`
	Duration     flexString        `json:"duration"`
	BitRate      flexString        `json:"bit_rate"`
	Channels     int               `json:"channels"`
	SampleRate   flexString        `json:"sample_rate"`
	Disposition  map[string]int    `json:"disposition"`
	Tags         map[string]string `json:"tags"`
}

// flexString accepts both JSON strings and bare numbers. ffprobe quotes
// most numeric fields but not all builds agree on which.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(b)
	return nil
}

// ParseJSON converts raw ffprobe JSON output into a MediaInfo.
// Exported for testing without a real ffprobe binary.
func ParseJSON(data []byte) (*media.MediaInfo, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &Error{Kind: ErrMalformedOutput, Err: err}
	}
	if raw.Streams == nil {
		return nil, &Error{Kind: ErrMalformedOutput, Detail: "no streams section"}
	}
	return buildInfo(&raw), nil
}

func buildInfo(raw *ffprobeOutput) *media.MediaInfo {
	info := &media.MediaInfo{
		Path:             raw.Format.Filename,
		Container:        raw.Format.FormatName,
		Duration:         parseFloat(raw.Format.Duration),
		Bitrate:          parseInt64(raw.Format.BitRate),
		VideoStreamIndex: -1,
		AudioTracks:      []media.AudioTrack{},
		SubtitleTracks:   []media.SubtitleTrack{},
	}
	if size := parseInt64(raw.Format.Size); size != nil {
		info.Size = *size
	}

	streams := *raw.Streams
	best := -1
	var bestPixels int64 = -1

	for i := range streams {
		s := &streams[i]
		switch s.CodecType {
		case "video":
			// Strictly greater keeps the first stream on ties.
			pixels := int64(s.Width) * int64(s.Height)
			if pixels > bestPixels {
				best = i
				bestPixels = pixels
			}
		case "audio":
			info.AudioTracks = append(info.AudioTracks, convertAudio(s))
		case "subtitle":
			info.SubtitleTracks = append(info.SubtitleTracks, convertSubtitle(s))
		}
	}

	if best >= 0 {
		v := &streams[best]
		info.VideoStreamIndex = v.Index
		info.VideoCodec = v.CodecName
		info.Width = v.Width
		info.Height = v.Height

		rate := parseFrameRate(v.RFrameRate)
		if rate == 0 {
			rate = parseFrameRate(v.AvgFrameRate)
		}
		info.FrameRate = rate

		if info.Duration == nil {
			info.Duration = parseFloat(v.Duration)
		}
		info.TotalFrames = resolveFrameCount(v, info.Duration, rate)
	}

	return info
}

// resolveFrameCount prefers the container's explicit frame count and
// otherwise derives floor(duration * fps).
func resolveFrameCount(v *ffprobeStream, duration *float64, fps float64) *int64 {
	if n := parseInt64(v.NbFrames); n != nil && *n > 0 {
		return n
	}
	if duration == nil || *duration <= 0 || fps <= 0 {
		return nil
	}
	frames := int64(math.Floor(*duration * fps))
	return &frames
}

func convertAudio(s *ffprobeStream) media.AudioTrack {
	t := media.AudioTrack{
		Index:    s.Index,
		Codec:    s.CodecName,
		Language: tag(s.Tags, "language"),
		Title:    tag(s.Tags, "title"),
		Channels: s.Channels,
		Bitrate:  parseInt64(s.BitRate),
	}
	if sr := parseInt64(s.SampleRate); sr != nil {
		t.SampleRate = int(*sr)
	}
	return t
}

func convertSubtitle(s *ffprobeStream) media.SubtitleTrack {
	return media.SubtitleTrack{
		Index:    s.Index,
		Codec:    s.CodecName,
		Language: tag(s.Tags, "language"),
		Title:    tag(s.Tags, "title"),
		Default:  s.Disposition["default"] == 1,
		Forced:   s.Disposition["forced"] == 1,
	}
}

// tag looks up a stream tag case-insensitively; Matroska writers emit
// upper-case keys.
func tag(tags map[string]string, key string) string {
	if v, ok := tags[key]; ok {
		return v
	}
	for k, v := range tags {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// --- Numeric helpers: empty, "N/A" and garbage all mean unknown ---

func parseFloat(s flexString) *float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(string(s)), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func parseInt64(s flexString) *int64 {
	str := strings.TrimSpace(string(s))
	if v, err := strconv.ParseInt(str, 10, 64); err == nil {
		return &v
	}
	// Some builds report integral fields as "1234.000".
	if f := parseFloat(s); f != nil {
		v := int64(*f)
		return &v
	}
	return nil
}

// parseFrameRate parses a rational like "30000/1001" or a plain number.
// Zero denominators and malformed values yield 0.
func parseFrameRate(s string) float64 {
	num, den, found := strings.Cut(strings.TrimSpace(s), "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil || n <= 0 {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d <= 0 {
		return 0
	}
	return n / d
}
