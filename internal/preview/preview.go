package preview

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"media-converter/internal/logging"
	"media-converter/internal/mediatypes"
	"media-converter/internal/metrics"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// Width limits for generated previews.
const (
	DefaultWidth = 320
	MaxWidth     = 1920
	jpegQuality  = 80
)

var (
	// ErrToolUnavailable is returned when ffmpeg cannot be started.
	ErrToolUnavailable = errors.New("ffmpeg unavailable")
	// ErrNoFrame is returned when ffmpeg produced no decodable frame.
	ErrNoFrame = errors.New("no frame extracted")
)

// Generator extracts single frames from media files as JPEG previews.
type Generator struct {
	binary string
}

// NewGenerator creates a Generator using the given ffmpeg binary. An empty
// binary means "ffmpeg" from PATH.
func NewGenerator(binary string) *Generator {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Generator{binary: binary}
}

// Frame returns the frame at offset seconds into path, scaled to width
// pixels wide and encoded as JPEG. Still images (cover art, posters) are
// decoded directly instead of going through ffmpeg.
func (g *Generator) Frame(ctx context.Context, path string, at float64, width int) ([]byte, error) {
	start := time.Now()
	data, err := g.frame(ctx, path, at, clampWidth(width))
	metrics.PreviewGenerationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PreviewGenerationsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.PreviewGenerationsTotal.WithLabelValues("success").Inc()
	return data, nil
}

func (g *Generator) frame(ctx context.Context, path string, at float64, width int) ([]byte, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("file not accessible: %w", err)
	}

	var img image.Image
	var err error
	if mediatypes.FromPath(path) == mediatypes.FileTypeImage {
		img, err = decodeStill(path)
	} else {
		img, err = g.extract(ctx, path, at)
	}
	if err != nil {
		return nil, err
	}

	if img.Bounds().Dx() > width {
		img = imaging.Resize(img, width, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode preview: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeStill(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err == nil {
		return img, nil
	}
	logging.Debug("imaging.Open failed for %s: %v, trying image.Decode", path, err)

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoFrame, err)
	}
	logging.Debug("Decoded %s image: %s", format, path)
	return img, nil
}

// extract seeks to at and grabs one frame. A seek past the end yields no
// output, so a failed attempt at a non-zero offset is retried at the start.
func (g *Generator) extract(ctx context.Context, path string, at float64) (image.Image, error) {
	img, err := g.grab(ctx, path, at)
	if err == nil || at <= 0 || errors.Is(err, ErrToolUnavailable) || ctx.Err() != nil {
		return img, err
	}
	logging.Debug("Preview at %.2fs failed for %s: %v, retrying at start", at, path, err)
	return g.grab(ctx, path, 0)
}

func (g *Generator) grab(ctx context.Context, path string, at float64) (image.Image, error) {
	cmd := exec.CommandContext(ctx, g.binary, frameArgs(path, at)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%w: %v", ErrToolUnavailable, err)
		}
		return nil, fmt.Errorf("ffmpeg failed: %v: %s", err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("%w: ffmpeg produced no output for %s", ErrNoFrame, path)
	}

	img, _, err := image.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoFrame, err)
	}
	return img, nil
}

func frameArgs(path string, at float64) []string {
	args := []string{"-hide_banner", "-loglevel", "error"}
	if at > 0 {
		args = append(args, "-ss", strconv.FormatFloat(at, 'f', 3, 64))
	}
	return append(args,
		"-i", path,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)
}

func clampWidth(width int) int {
	if width <= 0 {
		return DefaultWidth
	}
	if width > MaxWidth {
		return MaxWidth
	}
	return width
}
