package capability

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"strings"
	"sync"
	"time"

	"media-converter/internal/logging"
	"media-converter/internal/media"
	"media-converter/internal/metrics"
)

// listTimeout bounds a single ffmpeg listing call.
const listTimeout = 10 * time.Second

// Detector queries ffmpeg for the hardware encoders it was built with.
type Detector struct {
	binary string

	mu     sync.Mutex
	cached *media.GpuCapabilities
}

// NewDetector creates a Detector for the given ffmpeg binary. An empty
// binary means "ffmpeg" from PATH.
func NewDetector(binary string) *Detector {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Detector{binary: binary}
}

// Detect runs "ffmpeg -hide_banner -encoders" and reports which hardware
// encoder families appear in the listing. It never fails: when ffmpeg
// cannot be run every flag is false and Probed is false.
func (d *Detector) Detect(ctx context.Context) media.GpuCapabilities {
	out, err := d.run(ctx, "-hide_banner", "-encoders")
	if err != nil {
		logging.Warn("Encoder detection failed, assuming no hardware encoders: %v", err)
		metrics.CapabilityDetectionsTotal.WithLabelValues("unavailable").Inc()
		caps := media.GpuCapabilities{}
		recordGauges(caps)
		return caps
	}

	caps := ParseEncoders(out)
	metrics.CapabilityDetectionsTotal.WithLabelValues("success").Inc()
	recordGauges(caps)

	logging.Debug("Hardware encoders: nvenc=%v qsv=%v vaapi=%v videotoolbox=%v amf=%v",
		caps.NVENC, caps.QSV, caps.VAAPI, caps.VideoToolbox, caps.AMF)
	return caps
}

// DetectOnce returns the first successful detection result for the
// lifetime of the Detector. Failed detections are not cached so a later
// call can pick up an ffmpeg that was installed in the meantime.
func (d *Detector) DetectOnce(ctx context.Context) media.GpuCapabilities {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cached != nil {
		return *d.cached
	}
	caps := d.Detect(ctx)
	if caps.Probed {
		d.cached = &caps
	}
	return caps
}

// ParseEncoders matches the encoder listing case-insensitively against one
// name fragment per vendor family.
func ParseEncoders(listing []byte) media.GpuCapabilities {
	lower := strings.ToLower(string(listing))
	return media.GpuCapabilities{
		NVENC:        strings.Contains(lower, "nvenc"),
		QSV:          strings.Contains(lower, "qsv"),
		VAAPI:        strings.Contains(lower, "vaapi"),
		VideoToolbox: strings.Contains(lower, "videotoolbox"),
		AMF:          strings.Contains(lower, "amf"),
		Probed:       true,
	}
}

func recordGauges(caps media.GpuCapabilities) {
	for _, f := range media.HardwareFamilies {
		v := 0.0
		if caps.Supports(f) {
			v = 1
		}
		metrics.EncoderAvailable.WithLabelValues(string(f)).Set(v)
	}
}

func (d *Detector) run(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, d.binary, args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, err
	}
	return stdout.Bytes(), nil
}

// Format is one entry of ffmpeg's format listing.
type Format struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Demux       bool   `json:"demux"`
	Mux         bool   `json:"mux"`
}

// Formats lists the container formats ffmpeg can read or write.
func (d *Detector) Formats(ctx context.Context) ([]Format, error) {
	out, err := d.run(ctx, "-hide_banner", "-formats")
	if err != nil {
		return nil, err
	}
	return ParseFormats(out), nil
}

// ParseFormats parses "ffmpeg -formats" output. Rows before the "--"
// separator are the legend and are skipped. Comma-separated aliases on one
// row become separate entries.
func ParseFormats(listing []byte) []Format {
	var formats []Format
	inBody := false

	scanner := bufio.NewScanner(bytes.NewReader(listing))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !inBody {
			inBody = strings.HasPrefix(line, "--")
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		flags := fields[0]
		demux := strings.Contains(flags, "D")
		mux := strings.Contains(flags, "E")
		if !demux && !mux {
			continue
		}
		desc := strings.Join(fields[2:], " ")
		for _, name := range strings.Split(fields[1], ",") {
			if name == "" {
				continue
			}
			formats = append(formats, Format{Name: name, Description: desc, Demux: demux, Mux: mux})
		}
	}
	return formats
}

// ToolStatus reports whether the external binaries answer -version.
type ToolStatus struct {
	FFmpeg        bool   `json:"ffmpeg"`
	FFprobe       bool   `json:"ffprobe"`
	FFmpegVersion string `json:"ffmpegVersion,omitempty"`
}

// CheckTools runs "-version" against ffmpeg and the given ffprobe binary.
func (d *Detector) CheckTools(ctx context.Context, ffprobe string) ToolStatus {
	var status ToolStatus

	if out, err := d.run(ctx, "-version"); err == nil {
		status.FFmpeg = true
		status.FFmpegVersion = firstLine(out)
	}

	if ffprobe == "" {
		ffprobe = "ffprobe"
	}
	probe := &Detector{binary: ffprobe}
	if _, err := probe.run(ctx, "-version"); err == nil {
		status.FFprobe = true
	}

	return status
}

func firstLine(b []byte) string {
	line, _, _ := strings.Cut(string(b), "\n")
	return strings.TrimSpace(line)
}
