package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"media-converter/internal/capability"
	"media-converter/internal/database"
	"media-converter/internal/logging"
	"media-converter/internal/media"
	"media-converter/internal/naming"
	"media-converter/internal/probe"
	"media-converter/internal/startup"
	"media-converter/internal/transcoder"

	"github.com/google/uuid"
)

const (
	// Timeout for probe, capability and database commands
	defaultTimeout = 30 * time.Second
	// Default database directory path
	defaultDatabaseDir = startup.DefaultDatabaseDir
)

// toolPaths are the binaries used by every command.
type toolPaths struct {
	ffmpeg  string
	ffprobe string
}

func toolsFromEnv() toolPaths {
	return toolPaths{
		ffmpeg:  envOr("FFMPEG_PATH", "ffmpeg"),
		ffprobe: envOr("FFPROBE_PATH", "ffprobe"),
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	if os.Getenv("LOG_LEVEL") == "" && os.Getenv("DEBUG") == "" {
		logging.SetLevel(logging.LevelWarn)
	}

	command := os.Args[1]
	args := os.Args[2:]

	// Create a context that cancels on interrupt signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, stopping ffmpeg...")
		cancel()
	}()

	tools := toolsFromEnv()

	var code int
	switch command {
	case "run":
		code = runConvert(ctx, tools, args, os.Stdout, os.Stderr)
	case "probe":
		code = runProbe(ctx, tools, args, os.Stdout, os.Stderr)
	case "caps":
		code = runCaps(ctx, tools, os.Stdout)
	case "formats":
		code = runFormats(ctx, tools, args, os.Stdout, os.Stderr)
	case "history":
		code = runHistory(ctx, args, os.Stdout, os.Stderr)
	case "help", "-h", "--help":
		printUsage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", sanitizeCommand(command))
		printUsage(os.Stderr)
		code = 1
	}
	os.Exit(code)
}

// sanitizeCommand returns a safe representation of a command string for display.
// Any character that is not alphanumeric, a hyphen, or an underscore becomes '_'.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Media Converter")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage: convert <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  run      - Convert a file (run -h for flags)")
	fmt.Fprintln(w, "  probe    - Print media metadata as JSON")
	fmt.Fprintln(w, "  caps     - Show hardware encoder support")
	fmt.Fprintln(w, "  formats  - List output container formats")
	fmt.Fprintln(w, "  history  - List recent conversions")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  FFMPEG_PATH  - ffmpeg binary (default: ffmpeg)")
	fmt.Fprintln(w, "  FFPROBE_PATH - ffprobe binary (default: ffprobe)")
	fmt.Fprintf(w, "  DATABASE_DIR - Path to database directory (default: %s)\n", defaultDatabaseDir)
}

// runFlags holds the parsed flags of the run command.
type runFlags struct {
	input, output      string
	videoCodec         string
	crf                int
	preset, profile    string
	tune               string
	audio, audioCodec  string
	audioBitrate       string
	audioIndex         int
	subs               string
	subIndex           int
	progressMode       string
	rename             string
	cancelGrace        time.Duration
	verbose, overwrite bool
}

func parseRunFlags(args []string, stderr io.Writer) (*runFlags, error) {
	f := &runFlags{}
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.input, "i", "", "input file (required)")
	fs.StringVar(&f.output, "o", "", "output file, or a directory when -rename is set")
	fs.StringVar(&f.videoCodec, "vcodec", "libx264", "video encoder, or copy")
	fs.IntVar(&f.crf, "crf", -1, "constant rate factor (encoder default when negative)")
	fs.StringVar(&f.preset, "preset", "", "encoder preset")
	fs.StringVar(&f.profile, "profile", "", "encoder profile")
	fs.StringVar(&f.tune, "tune", "", "encoder tune")
	fs.StringVar(&f.audio, "audio", string(media.AudioFirstTrack), "audio strategy: copy_all, convert_all, first_track, explicit_index")
	fs.StringVar(&f.audioCodec, "acodec", media.DefaultAudioCodec, "audio encoder")
	fs.StringVar(&f.audioBitrate, "abitrate", media.DefaultAudioBitrate, "audio bitrate")
	fs.IntVar(&f.audioIndex, "audio-index", -1, "audio stream index for explicit_index")
	fs.StringVar(&f.subs, "subs", string(media.SubtitleIgnore), "subtitle strategy: copy_all, burn_in, ignore, explicit_index")
	fs.IntVar(&f.subIndex, "sub-index", -1, "subtitle stream index for explicit_index")
	fs.StringVar(&f.progressMode, "progress", string(media.ProgressStream), "progress source: stream or sidecar")
	fs.StringVar(&f.rename, "rename", "", "name the output from this template, e.g. \"{title} ({year}) - {quality}\"")
	fs.DurationVar(&f.cancelGrace, "cancel-grace", startup.DefaultCancelGrace, "time ffmpeg gets to exit after Ctrl+C")
	fs.BoolVar(&f.verbose, "v", false, "verbose logging")
	fs.BoolVar(&f.overwrite, "y", false, "overwrite an existing output file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if f.input == "" {
		return nil, errors.New("-i is required")
	}
	if f.output == "" && f.rename == "" {
		return nil, errors.New("-o is required unless -rename is set")
	}
	return f, nil
}

// options converts the flags into conversion options for the probed input.
func (f *runFlags) options(info *media.MediaInfo) (media.ConversionOptions, error) {
	mode, err := media.ParseProgressMode(f.progressMode)
	if err != nil {
		return media.ConversionOptions{}, err
	}

	opts := media.ConversionOptions{
		ID:               uuid.NewString(),
		InputPath:        f.input,
		OutputPath:       f.output,
		VideoCodec:       f.videoCodec,
		Preset:           f.preset,
		Profile:          f.profile,
		Tune:             f.tune,
		AudioStrategy:    media.AudioStrategy(f.audio),
		AudioCodec:       f.audioCodec,
		AudioBitrate:     f.audioBitrate,
		SubtitleStrategy: media.SubtitleStrategy(f.subs),
		Source:           info,
		ProgressMode:     mode,
	}
	if f.crf >= 0 {
		crf := f.crf
		opts.CRF = &crf
	}
	if f.audioIndex >= 0 {
		idx := f.audioIndex
		opts.AudioTrackIndex = &idx
	}
	if f.subIndex >= 0 {
		idx := f.subIndex
		opts.SubtitleTrackIndex = &idx
	}

	if f.rename != "" {
		dir := f.output
		if dir == "" {
			dir = filepath.Dir(f.input)
		}
		ext := filepath.Ext(f.input)
		movie := movieFromFilename(filepath.Base(f.input))
		opts.OutputPath = filepath.Join(dir, naming.GenerateFilename(info, movie, f.rename, outputExtension(f.videoCodec, ext)))
	}

	return opts, opts.Normalize()
}

// movieFromFilename builds naming metadata from the release-style name of
// the input.
func movieFromFilename(name string) *naming.Movie {
	parsed := naming.ParseFilename(name)
	movie := &naming.Movie{Title: parsed.Title}
	if parsed.Year > 0 {
		movie.ReleaseDate = fmt.Sprintf("%04d-01-01", parsed.Year)
	}
	return movie
}

// outputExtension picks the container for a renamed output: webm for VP8,
// VP9 and AV1 software encoders, mp4 for everything else except stream
// copies, which keep the input container.
func outputExtension(videoCodec, inputExt string) string {
	switch strings.ToLower(videoCodec) {
	case "libvpx", "libvpx-vp9", "libaom-av1", "libsvtav1":
		return ".webm"
	case "copy":
		if inputExt != "" {
			return inputExt
		}
	}
	return naming.DefaultExtension
}

func runConvert(ctx context.Context, tools toolPaths, args []string, stdout, stderr io.Writer) int {
	f, err := parseRunFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if f.verbose {
		logging.SetLevel(logging.LevelDebug)
	}

	probeCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	info, err := probe.NewClient(tools.ffprobe).Probe(probeCtx, f.input)
	cancel()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	opts, err := f.options(info)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if !f.overwrite {
		if _, err := os.Stat(opts.OutputPath); err == nil {
			fmt.Fprintf(stderr, "Error: %s already exists (use -y to overwrite)\n", opts.OutputPath)
			return 1
		}
	}

	detector := capability.NewDetector(tools.ffmpeg)
	manager := transcoder.NewManager(transcoder.Config{
		FFmpegPath:   tools.ffmpeg,
		WorkDir:      envOr("WORK_DIR", startup.DefaultWorkDir()),
		ProgressMode: opts.ProgressMode,
		CancelGrace:  f.cancelGrace,
		Capabilities: detector,
	})
	defer manager.Cleanup()

	fmt.Fprintf(stdout, "Converting %s\n        -> %s\n", opts.InputPath, opts.OutputPath)

	bar := newProgressBar(stdout)
	result, err := manager.Convert(ctx, opts, bar.Update)
	bar.Finish()

	if result == nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return reportResult(stdout, stderr, result, err)
}

func reportResult(stdout, stderr io.Writer, result *media.ConversionResult, err error) int {
	switch {
	case result.Success:
		fmt.Fprintf(stdout, "Done in %s: %s\n", formatDuration(result.Duration), result.OutputPath)
		return 0
	case result.Cancelled():
		fmt.Fprintln(stderr, result.Error)
		return 130
	default:
		fmt.Fprintf(stderr, "Conversion failed (%s): %s\n", result.Reason.Status(), result.Error)
		var exitErr *transcoder.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode > 0 {
			return exitErr.ExitCode
		}
		return 1
	}
}

func runProbe(ctx context.Context, tools toolPaths, args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(stderr, "Usage: convert probe <file>")
		return 2
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	info, err := probe.NewClient(tools.ffprobe).Probe(ctx, args[0])
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return printJSON(stdout, stderr, info)
}

func runCaps(ctx context.Context, tools toolPaths, stdout io.Writer) int {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	detector := capability.NewDetector(tools.ffmpeg)
	status := detector.CheckTools(ctx, tools.ffprobe)
	caps := detector.Detect(ctx)

	fmt.Fprintf(stdout, "ffmpeg:       %s\n", availability(status.FFmpeg, status.FFmpegVersion))
	fmt.Fprintf(stdout, "ffprobe:      %s\n", availability(status.FFprobe, ""))
	if !caps.Probed {
		fmt.Fprintln(stdout, "encoders:     unknown (listing failed)")
		return 0
	}
	fmt.Fprintf(stdout, "NVENC:        %s\n", yesNo(caps.NVENC))
	fmt.Fprintf(stdout, "QSV:          %s\n", yesNo(caps.QSV))
	fmt.Fprintf(stdout, "VAAPI:        %s\n", yesNo(caps.VAAPI))
	fmt.Fprintf(stdout, "VideoToolbox: %s\n", yesNo(caps.VideoToolbox))
	fmt.Fprintf(stdout, "AMF:          %s\n", yesNo(caps.AMF))
	return 0
}

func runFormats(ctx context.Context, tools toolPaths, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("formats", flag.ContinueOnError)
	fs.SetOutput(stderr)
	all := fs.Bool("all", false, "include demux-only formats")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	formats, err := capability.NewDetector(tools.ffmpeg).Formats(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	for _, f := range formats {
		if !f.Mux && !*all {
			continue
		}
		fmt.Fprintf(stdout, "%-16s %s\n", f.Name, f.Description)
	}
	return 0
}

func runHistory(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(stderr)
	limit := fs.Int("limit", database.DefaultHistoryLimit, "number of conversions to show")
	asJSON := fs.Bool("json", false, "print records as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	databaseDir := envOr("DATABASE_DIR", defaultDatabaseDir)
	dbPath := filepath.Join(databaseDir, startup.DatabaseFile)

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	db, err := database.New(ctx, dbPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: Failed to open database: %v\n", err)
		fmt.Fprintf(stderr, "Make sure DATABASE_DIR is set correctly (current: %s)\n", databaseDir)
		return 1
	}
	defer func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(stderr, "Warning: failed to close database: %v\n", err)
		}
	}()

	records, err := db.ListConversions(ctx, *limit)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if *asJSON {
		return printJSON(stdout, stderr, records)
	}
	printHistory(stdout, records)
	return 0
}

func printHistory(w io.Writer, records []database.ConversionRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No conversions recorded")
		return
	}
	for _, rec := range records {
		fmt.Fprintf(w, "%s  %-16s %s -> %s\n",
			rec.CreatedAt.Local().Format("2006-01-02 15:04"), rec.Status, rec.InputPath, rec.OutputPath)
		if rec.Result != nil && rec.Result.Error != "" && !rec.Result.Success {
			fmt.Fprintf(w, "                  %s\n", rec.Result.Error)
		}
	}
}

func printJSON(stdout, stderr io.Writer, v interface{}) int {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func availability(ok bool, version string) string {
	if !ok {
		return "not found"
	}
	if version != "" {
		return "ok (" + version + ")"
	}
	return "ok"
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
