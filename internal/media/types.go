package media

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// MediaInfo is the normalized result of probing a media file.
type MediaInfo struct {
	Path             string          `json:"path"`
	Duration         *float64        `json:"duration,omitempty"` // seconds
	Width            int             `json:"width"`
	Height           int             `json:"height"`
	Container        string          `json:"container"`
	VideoCodec       string          `json:"videoCodec"`
	VideoStreamIndex int             `json:"videoStreamIndex"` // -1 when the file has no video stream
	FrameRate        float64         `json:"frameRate,omitempty"`
	TotalFrames      *int64          `json:"totalFrames,omitempty"`
	Bitrate          *int64          `json:"bitrate,omitempty"`
	Size             int64           `json:"size"`
	AudioTracks      []AudioTrack    `json:"audioTracks"`
	SubtitleTracks   []SubtitleTrack `json:"subtitleTracks"`
}

// HasVideo reports whether a video stream was selected.
func (m *MediaInfo) HasVideo() bool {
	return m != nil && m.VideoStreamIndex >= 0
}

// SubtitleOrdinal returns the position of the subtitle stream with the
// given absolute index among the file's subtitle streams.
func (m *MediaInfo) SubtitleOrdinal(index int) (int, bool) {
	if m == nil {
		return 0, false
	}
	for i, t := range m.SubtitleTracks {
		if t.Index == index {
			return i, true
		}
	}
	return 0, false
}

// AudioTrack describes one audio stream. Index is the absolute stream index
// in the container and is what -map selections must use.
type AudioTrack struct {
	Index      int    `json:"index"`
	Codec      string `json:"codec"`
	Language   string `json:"language,omitempty"`
	Title      string `json:"title,omitempty"`
	Channels   int    `json:"channels"`
	SampleRate int    `json:"sampleRate,omitempty"`
	Bitrate    *int64 `json:"bitrate,omitempty"`
}

// SubtitleTrack describes one subtitle stream.
type SubtitleTrack struct {
	Index    int    `json:"index"`
	Codec    string `json:"codec"`
	Language string `json:"language,omitempty"`
	Title    string `json:"title,omitempty"`
	Default  bool   `json:"default"`
	Forced   bool   `json:"forced"`
}

// GpuCapabilities lists the hardware encoder families ffmpeg reported.
// Probed is false when the encoder listing could not be obtained, in which
// case every family flag is false as well.
type GpuCapabilities struct {
	NVENC        bool `json:"nvenc"`
	QSV          bool `json:"qsv"`
	VAAPI        bool `json:"vaapi"`
	VideoToolbox bool `json:"videotoolbox"`
	AMF          bool `json:"amf"`
	Probed       bool `json:"probed"`
}

// Supports reports whether the given encoder family can be used. Software,
// copy and unrecognized codecs are always considered supported.
func (c GpuCapabilities) Supports(f CodecFamily) bool {
	switch f {
	case FamilyNVENC:
		return c.NVENC
	case FamilyQSV:
		return c.QSV
	case FamilyVAAPI:
		return c.VAAPI
	case FamilyVideoToolbox:
		return c.VideoToolbox
	case FamilyAMF:
		return c.AMF
	case FamilySoftware, FamilyCopy, FamilyOther:
		return true
	default:
		return false
	}
}

// ProgressMode selects how ffmpeg reports progress for a job.
type ProgressMode string

const (
	// ProgressStream parses the stats line ffmpeg writes to stderr.
	ProgressStream ProgressMode = "stream"
	// ProgressSidecar polls a key=value file written with -progress.
	ProgressSidecar ProgressMode = "sidecar"
)

// ParseProgressMode converts a configuration value into a ProgressMode.
func ParseProgressMode(s string) (ProgressMode, error) {
	switch ProgressMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ProgressStream:
		return ProgressStream, nil
	case ProgressSidecar:
		return ProgressSidecar, nil
	default:
		return "", fmt.Errorf("unknown progress mode %q", s)
	}
}

// ConversionOptions is the caller-supplied description of one conversion.
type ConversionOptions struct {
	ID         string `json:"id"`
	InputPath  string `json:"inputPath"`
	OutputPath string `json:"outputPath"`
	VideoCodec string `json:"videoCodec"`

	CRF     *int   `json:"crf,omitempty"`
	Preset  string `json:"preset,omitempty"`
	Profile string `json:"profile,omitempty"`
	Tune    string `json:"tune,omitempty"`

	AudioStrategy   AudioStrategy `json:"audioStrategy"`
	AudioTrackIndex *int          `json:"audioTrackIndex,omitempty"`
	AudioCodec      string        `json:"audioCodec,omitempty"`
	AudioBitrate    string        `json:"audioBitrate,omitempty"`

	SubtitleStrategy   SubtitleStrategy `json:"subtitleStrategy"`
	SubtitleTrackIndex *int             `json:"subtitleTrackIndex,omitempty"`

	// Expected totals used to normalize progress. When Source is set and
	// these are zero, the probed values are used instead.
	DurationSeconds float64 `json:"durationSeconds,omitempty"`
	TotalFrames     int64   `json:"totalFrames,omitempty"`

	Source *MediaInfo `json:"source,omitempty"`

	ProgressMode ProgressMode `json:"progressMode,omitempty"`
	SidecarPath  string       `json:"-"`
}

// Defaults used when the caller leaves audio settings empty.
const (
	DefaultAudioCodec   = "aac"
	DefaultAudioBitrate = "128k"
)

// Normalize fills defaults and validates the options.
func (o *ConversionOptions) Normalize() error {
	if o.ID == "" {
		return fmt.Errorf("conversion id is required")
	}
	if o.InputPath == "" || o.OutputPath == "" {
		return fmt.Errorf("input and output paths are required")
	}
	if filepath.Clean(o.InputPath) == filepath.Clean(o.OutputPath) {
		return fmt.Errorf("output path must differ from input path")
	}
	if o.VideoCodec == "" {
		o.VideoCodec = "libx264"
	}
	if o.AudioCodec == "" {
		o.AudioCodec = DefaultAudioCodec
	}
	if o.AudioBitrate == "" {
		o.AudioBitrate = DefaultAudioBitrate
	}
	if o.AudioStrategy == "" {
		o.AudioStrategy = AudioFirstTrack
	}
	if o.SubtitleStrategy == "" {
		o.SubtitleStrategy = SubtitleIgnore
	}
	if o.ProgressMode == "" {
		o.ProgressMode = ProgressStream
	}
	if !o.AudioStrategy.Valid() {
		return fmt.Errorf("unknown audio strategy %q", o.AudioStrategy)
	}
	if !o.SubtitleStrategy.Valid() {
		return fmt.Errorf("unknown subtitle strategy %q", o.SubtitleStrategy)
	}
	if o.AudioStrategy == AudioExplicitIndex && o.AudioTrackIndex == nil {
		return fmt.Errorf("audio strategy %q requires audioTrackIndex", o.AudioStrategy)
	}
	if o.SubtitleStrategy == SubtitleExplicitIndex && o.SubtitleTrackIndex == nil {
		return fmt.Errorf("subtitle strategy %q requires subtitleTrackIndex", o.SubtitleStrategy)
	}
	if o.Source != nil {
		o.ApplySource(o.Source)
		return o.CheckSource()
	}
	return nil
}

// ApplySource attaches probed metadata and fills expected totals the
// caller left unset.
func (o *ConversionOptions) ApplySource(info *MediaInfo) {
	o.Source = info
	if info == nil {
		return
	}
	if o.DurationSeconds <= 0 && info.Duration != nil {
		o.DurationSeconds = *info.Duration
	}
	if o.TotalFrames <= 0 && info.TotalFrames != nil {
		o.TotalFrames = *info.TotalFrames
	}
}

// CheckSource validates the choices that depend on the probed input. The
// subtitles filter addresses streams by their position among subtitle
// streams, so burning in a specific track needs the track list.
func (o *ConversionOptions) CheckSource() error {
	if o.SubtitleStrategy != SubtitleBurnIn || o.SubtitleTrackIndex == nil {
		return nil
	}
	if o.Source == nil {
		return fmt.Errorf("subtitle strategy %q with subtitleTrackIndex needs probed source metadata", o.SubtitleStrategy)
	}
	if _, ok := o.Source.SubtitleOrdinal(*o.SubtitleTrackIndex); !ok {
		return fmt.Errorf("stream %d is not a subtitle stream of %s", *o.SubtitleTrackIndex, o.InputPath)
	}
	return nil
}

// ConversionProgress is one progress event for a running job. Progress is a
// fraction in [0,1].
type ConversionProgress struct {
	JobID          string   `json:"id"`
	Frame          int64    `json:"frame"`
	FPS            float64  `json:"fps"`
	AverageFPS     float64  `json:"averageFps"`
	Time           string   `json:"time"`
	TimeSeconds    float64  `json:"timeSeconds"`
	ElapsedSeconds float64  `json:"elapsedSeconds"`
	Bitrate        string   `json:"bitrate"`
	Speed          float64  `json:"speed"`
	Progress       float64  `json:"progress"`
	ETASeconds     *float64 `json:"etaSeconds,omitempty"`
}

// FailureReason classifies why a conversion did not succeed.
type FailureReason string

const (
	ReasonNone            FailureReason = ""
	ReasonToolUnavailable FailureReason = "tool_unavailable"
	ReasonSpawnFailed     FailureReason = "spawn_failed"
	ReasonExecution       FailureReason = "failed"
	ReasonCancelled       FailureReason = "cancelled"
)

// Status returns the label used for metrics and history rows.
func (r FailureReason) Status() string {
	if r == ReasonNone {
		return "success"
	}
	return string(r)
}

// StoppedByUser is the error text of a cancelled conversion.
const StoppedByUser = "Conversion stopped by user"

// ConversionResult is the terminal record of a job.
type ConversionResult struct {
	JobID      string        `json:"id"`
	Success    bool          `json:"success"`
	OutputPath string        `json:"outputPath,omitempty"`
	Error      string        `json:"error,omitempty"`
	Reason     FailureReason `json:"reason,omitempty"`
	ExitCode   int           `json:"exitCode"`
	Duration   float64       `json:"duration"` // elapsed seconds
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
}

// Cancelled reports whether the job was stopped by the user.
func (r *ConversionResult) Cancelled() bool {
	return r.Reason == ReasonCancelled
}
