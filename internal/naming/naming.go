package naming

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"media-converter/internal/media"
)

// DefaultTemplate is used when the caller passes an empty template.
const DefaultTemplate = "{title} ({year}) - {quality}"

// DefaultExtension is appended when the caller passes no extension.
const DefaultExtension = ".mp4"

// Unknown is substituted for {title} when no movie record is available.
const Unknown = "Unknown Title"

// Movie is the subset of a movie-metadata lookup used for naming.
type Movie struct {
	ID          int    `json:"id,omitempty"`
	Title       string `json:"title"`
	ReleaseDate string `json:"releaseDate,omitempty"` // YYYY-MM-DD
	Overview    string `json:"overview,omitempty"`
}

// Year returns the year part of the release date, or "" when unknown.
func (m *Movie) Year() string {
	if m == nil || m.ReleaseDate == "" {
		return ""
	}
	year, _, _ := strings.Cut(m.ReleaseDate, "-")
	if _, err := strconv.Atoi(year); err != nil {
		return ""
	}
	return year
}

var (
	whitespaceRe   = regexp.MustCompile(`\s+`)
	emptyBracketRe = regexp.MustCompile(`\(\s*\)|\[\s*\]`)
	danglingDashRe = regexp.MustCompile(`^[\s-]+|[\s-]+$`)
	unsafeChars    = strings.NewReplacer(
		"/", " ", `\`, " ", ":", " ", "*", "", "?", "", `"`, "", "<", "", ">", "", "|", "",
	)
)

// Quality returns the resolution label for a video height.
func Quality(height int) string {
	switch {
	case height >= 2160:
		return "4K"
	case height >= 1080:
		return "1080p"
	case height >= 720:
		return "720p"
	default:
		return "SD"
	}
}

// GenerateFilename fills template with {title}, {year}, {quality} and
// {codec} and returns a file name ending in ext. Empty placeholders leave
// no empty brackets or doubled spaces behind.
func GenerateFilename(info *media.MediaInfo, movie *Movie, template, ext string) string {
	if strings.TrimSpace(template) == "" {
		template = DefaultTemplate
	}
	ext = normalizeExt(ext)

	title := Unknown
	if movie != nil && strings.TrimSpace(movie.Title) != "" {
		title = movie.Title
	}

	var height int
	var codec string
	if info != nil {
		height = info.Height
		codec = info.VideoCodec
	}

	name := strings.NewReplacer(
		"{title}", title,
		"{year}", movie.Year(),
		"{quality}", Quality(height),
		"{codec}", codec,
	).Replace(template)

	name = unsafeChars.Replace(name)
	name = emptyBracketRe.ReplaceAllString(name, "")
	name = whitespaceRe.ReplaceAllString(name, " ")
	name = danglingDashRe.ReplaceAllString(name, "")
	name = strings.ReplaceAll(name, " - - ", " - ")

	if strings.EqualFold(filepath.Ext(name), ext) {
		name = strings.TrimSpace(strings.TrimSuffix(name, name[len(name)-len(ext):])) + ext
	} else {
		name += ext
	}
	if name == ext {
		name = Unknown + ext
	}
	return name
}

func normalizeExt(ext string) string {
	ext = strings.TrimSpace(ext)
	if ext == "" {
		return DefaultExtension
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return strings.ToLower(ext)
}
