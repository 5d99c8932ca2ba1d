package media

import (
	"testing"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func int64Ptr(v int64) *int64     { return &v }

func TestClassifyCodec(t *testing.T) {
	tests := []struct {
		codec    string
		expected CodecFamily
	}{
		{"libx264", FamilySoftware},
		{"libx265", FamilySoftware},
		{"libsvtav1", FamilySoftware},
		{"h264_nvenc", FamilyNVENC},
		{"HEVC_NVENC", FamilyNVENC},
		{"h264_qsv", FamilyQSV},
		{"hevc_vaapi", FamilyVAAPI},
		{"h264_videotoolbox", FamilyVideoToolbox},
		{"h264_amf", FamilyAMF},
		{"copy", FamilyCopy},
		{"mpeg4", FamilyOther},
		{"", FamilyOther},
	}

	for _, tt := range tests {
		t.Run(tt.codec, func(t *testing.T) {
			if got := ClassifyCodec(tt.codec); got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestCodecFamilyIsHardware(t *testing.T) {
	for _, f := range HardwareFamilies {
		if !f.IsHardware() {
			t.Errorf("Expected %s to be hardware", f)
		}
	}
	for _, f := range []CodecFamily{FamilySoftware, FamilyCopy, FamilyOther} {
		if f.IsHardware() {
			t.Errorf("Expected %s not to be hardware", f)
		}
	}
}

func TestGpuCapabilitiesSupports(t *testing.T) {
	caps := GpuCapabilities{NVENC: true, Probed: true}

	if !caps.Supports(FamilyNVENC) {
		t.Error("Expected NVENC to be supported")
	}
	if caps.Supports(FamilyQSV) {
		t.Error("Expected QSV to be unsupported")
	}
	if !caps.Supports(FamilySoftware) {
		t.Error("Expected software encoders to always be supported")
	}
	if !caps.Supports(FamilyCopy) {
		t.Error("Expected copy to always be supported")
	}
}

func TestStrategyValid(t *testing.T) {
	for _, s := range []AudioStrategy{AudioCopyAll, AudioConvertAll, AudioFirstTrack, AudioExplicitIndex} {
		if !s.Valid() {
			t.Errorf("Expected audio strategy %q to be valid", s)
		}
	}
	if AudioStrategy("copy-everything").Valid() {
		t.Error("Expected unknown audio strategy to be invalid")
	}

	for _, s := range []SubtitleStrategy{SubtitleCopyAll, SubtitleBurnIn, SubtitleIgnore, SubtitleExplicitIndex} {
		if !s.Valid() {
			t.Errorf("Expected subtitle strategy %q to be valid", s)
		}
	}
	if SubtitleStrategy("burn").Valid() {
		t.Error("Expected unknown subtitle strategy to be invalid")
	}
}

func TestParseProgressMode(t *testing.T) {
	tests := []struct {
		input    string
		expected ProgressMode
		wantErr  bool
	}{
		{"", ProgressStream, false},
		{"stream", ProgressStream, false},
		{"SIDECAR", ProgressSidecar, false},
		{"file", "", true},
	}

	for _, tt := range tests {
		got, err := ParseProgressMode(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseProgressMode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
		if got != tt.expected {
			t.Errorf("ParseProgressMode(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestConversionOptionsNormalize(t *testing.T) {
	t.Run("fills defaults", func(t *testing.T) {
		opts := ConversionOptions{ID: "job", InputPath: "/in.mkv", OutputPath: "/out.mp4"}
		if err := opts.Normalize(); err != nil {
			t.Fatalf("Normalize failed: %v", err)
		}
		if opts.VideoCodec != "libx264" {
			t.Errorf("Expected default video codec libx264, got %s", opts.VideoCodec)
		}
		if opts.AudioCodec != DefaultAudioCodec || opts.AudioBitrate != DefaultAudioBitrate {
			t.Errorf("Expected audio defaults, got %s/%s", opts.AudioCodec, opts.AudioBitrate)
		}
		if opts.AudioStrategy != AudioFirstTrack {
			t.Errorf("Expected first_track, got %s", opts.AudioStrategy)
		}
		if opts.SubtitleStrategy != SubtitleIgnore {
			t.Errorf("Expected ignore, got %s", opts.SubtitleStrategy)
		}
		if opts.ProgressMode != ProgressStream {
			t.Errorf("Expected stream progress mode, got %s", opts.ProgressMode)
		}
	})

	t.Run("totals come from source", func(t *testing.T) {
		opts := ConversionOptions{
			ID: "job", InputPath: "/in.mkv", OutputPath: "/out.mp4",
			Source: &MediaInfo{Duration: floatPtr(90.5), TotalFrames: int64Ptr(2172)},
		}
		if err := opts.Normalize(); err != nil {
			t.Fatalf("Normalize failed: %v", err)
		}
		if opts.DurationSeconds != 90.5 {
			t.Errorf("Expected duration 90.5, got %v", opts.DurationSeconds)
		}
		if opts.TotalFrames != 2172 {
			t.Errorf("Expected 2172 frames, got %d", opts.TotalFrames)
		}
	})

	t.Run("caller totals win", func(t *testing.T) {
		opts := ConversionOptions{
			ID: "job", InputPath: "/in.mkv", OutputPath: "/out.mp4",
			DurationSeconds: 10,
			Source:          &MediaInfo{Duration: floatPtr(90.5)},
		}
		if err := opts.Normalize(); err != nil {
			t.Fatalf("Normalize failed: %v", err)
		}
		if opts.DurationSeconds != 10 {
			t.Errorf("Expected duration 10, got %v", opts.DurationSeconds)
		}
	})

	errorCases := []struct {
		name string
		opts ConversionOptions
	}{
		{"missing id", ConversionOptions{InputPath: "/a", OutputPath: "/b"}},
		{"missing output", ConversionOptions{ID: "j", InputPath: "/a"}},
		{"same paths", ConversionOptions{ID: "j", InputPath: "/a/b.mp4", OutputPath: "/a/./b.mp4"}},
		{"unknown audio strategy", ConversionOptions{ID: "j", InputPath: "/a", OutputPath: "/b", AudioStrategy: "all"}},
		{"unknown subtitle strategy", ConversionOptions{ID: "j", InputPath: "/a", OutputPath: "/b", SubtitleStrategy: "all"}},
		{"explicit audio without index", ConversionOptions{ID: "j", InputPath: "/a", OutputPath: "/b", AudioStrategy: AudioExplicitIndex}},
		{"explicit subtitle without index", ConversionOptions{ID: "j", InputPath: "/a", OutputPath: "/b", SubtitleStrategy: SubtitleExplicitIndex}},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.opts.Normalize(); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}

	t.Run("explicit index accepted", func(t *testing.T) {
		opts := ConversionOptions{
			ID: "j", InputPath: "/a", OutputPath: "/b",
			AudioStrategy: AudioExplicitIndex, AudioTrackIndex: intPtr(2),
		}
		if err := opts.Normalize(); err != nil {
			t.Errorf("Expected no error, got %v", err)
		}
	})
}

func TestConversionOptionsCheckSource(t *testing.T) {
	subs := &MediaInfo{SubtitleTracks: []SubtitleTrack{{Index: 3}, {Index: 5}}}

	tests := []struct {
		name    string
		opts    ConversionOptions
		wantErr bool
	}{
		{"not burning in", ConversionOptions{SubtitleStrategy: SubtitleCopyAll, SubtitleTrackIndex: intPtr(9)}, false},
		{"burn in first stream", ConversionOptions{SubtitleStrategy: SubtitleBurnIn}, false},
		{"burn in index without source", ConversionOptions{SubtitleStrategy: SubtitleBurnIn, SubtitleTrackIndex: intPtr(5)}, true},
		{"burn in known index", ConversionOptions{SubtitleStrategy: SubtitleBurnIn, SubtitleTrackIndex: intPtr(5), Source: subs}, false},
		{"burn in non-subtitle index", ConversionOptions{SubtitleStrategy: SubtitleBurnIn, SubtitleTrackIndex: intPtr(1), Source: subs}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.CheckSource()
			if (err != nil) != tt.wantErr {
				t.Errorf("Expected error=%v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNormalizeRejectsUnknownBurnInTrack(t *testing.T) {
	opts := ConversionOptions{
		ID: "j", InputPath: "/a.mkv", OutputPath: "/b.mp4",
		SubtitleStrategy: SubtitleBurnIn, SubtitleTrackIndex: intPtr(7),
		Source: &MediaInfo{SubtitleTracks: []SubtitleTrack{{Index: 2}}},
	}
	if err := opts.Normalize(); err == nil {
		t.Error("Expected error for a track the source does not have")
	}
}

func TestApplySource(t *testing.T) {
	opts := ConversionOptions{TotalFrames: 50}
	opts.ApplySource(&MediaInfo{Duration: floatPtr(12), TotalFrames: int64Ptr(300)})

	if opts.Source == nil {
		t.Fatal("Expected source to be attached")
	}
	if opts.DurationSeconds != 12 {
		t.Errorf("Expected duration 12, got %v", opts.DurationSeconds)
	}
	if opts.TotalFrames != 50 {
		t.Errorf("Expected caller frame total 50 kept, got %d", opts.TotalFrames)
	}

	opts.ApplySource(nil)
	if opts.Source != nil {
		t.Error("Expected nil source to clear the metadata")
	}
}

func TestSubtitleOrdinal(t *testing.T) {
	info := &MediaInfo{SubtitleTracks: []SubtitleTrack{{Index: 3}, {Index: 5}}}

	if pos, ok := info.SubtitleOrdinal(5); !ok || pos != 1 {
		t.Errorf("Expected (1, true), got (%d, %v)", pos, ok)
	}
	if _, ok := info.SubtitleOrdinal(4); ok {
		t.Error("Expected stream 4 to be unknown")
	}
	var missing *MediaInfo
	if _, ok := missing.SubtitleOrdinal(0); ok {
		t.Error("Expected nil info to report no streams")
	}
}

func TestFailureReasonStatus(t *testing.T) {
	if ReasonNone.Status() != "success" {
		t.Errorf("Expected success, got %s", ReasonNone.Status())
	}
	if ReasonCancelled.Status() != "cancelled" {
		t.Errorf("Expected cancelled, got %s", ReasonCancelled.Status())
	}
	r := ConversionResult{Reason: ReasonCancelled}
	if !r.Cancelled() {
		t.Error("Expected Cancelled() to be true")
	}
}
