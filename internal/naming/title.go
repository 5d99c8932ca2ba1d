package naming

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"media-converter/internal/mediatypes"
)

// ParsedTitle is what could be read from a release-style file name.
type ParsedTitle struct {
	Title   string `json:"title"`
	Year    int    `json:"year,omitempty"`
	Season  int    `json:"season,omitempty"`
	Episode int    `json:"episode,omitempty"`
	Quality string `json:"quality,omitempty"`
	Group   string `json:"group,omitempty"`
}

var (
	separatorRe  = regexp.MustCompile(`[._]+`)
	qualityTagRe = regexp.MustCompile(`(?i)\b(2160p|1080p|720p|480p|4K|UHD|HDR|HDRip|BRRip|BDRip|BluRay|DVD|DVDRip|WEB[ -]?DL|WEBRip|HDTV|PDTV|CAM|TS|TC|R5|R6|REMUX)\b`)
	codecTagRe   = regexp.MustCompile(`(?i)\b(x264|x265|h264|h265|HEVC|AVC|XviD|DivX|AAC|AC3|DTS|MP3|FLAC|10bit)\b`)

	// Tried in order; the first match wins.
	yearGroupRe    = regexp.MustCompile(`^(.+?)\s+\(?(\d{4})\)?\s+(.+?)-([^\s-]+)$`)
	yearRestRe     = regexp.MustCompile(`^(.+?)\s+\(?(\d{4})\)?\s+(.+)$`)
	yearOnlyRe     = regexp.MustCompile(`^(.+?)\s+\(?(\d{4})\)?$`)
	episodeGroupRe = regexp.MustCompile(`(?i)^(.+?)\s+S(\d{1,2})E(\d{1,3})\s+(.+?)-([^\s-]+)$`)
	episodeRestRe  = regexp.MustCompile(`(?i)^(.+?)\s+S(\d{1,2})E(\d{1,3})(?:\s+(.+))?$`)
)

// ParseFilename splits a release-style file name such as
// "Movie.Name.2023.1080p.BluRay.x264-GROUP.mkv" into its parts.
func ParseFilename(filename string) ParsedTitle {
	name := normalizeName(filename)

	if m := episodeGroupRe.FindStringSubmatch(name); m != nil {
		return ParsedTitle{Title: cleanTitle(m[1]), Season: atoi(m[2]), Episode: atoi(m[3]), Quality: m[4], Group: m[5]}
	}
	if m := episodeRestRe.FindStringSubmatch(name); m != nil {
		return ParsedTitle{Title: cleanTitle(m[1]), Season: atoi(m[2]), Episode: atoi(m[3]), Quality: m[4]}
	}
	if m := yearGroupRe.FindStringSubmatch(name); m != nil && plausibleYear(m[2]) {
		return ParsedTitle{Title: cleanTitle(m[1]), Year: atoi(m[2]), Quality: m[3], Group: m[4]}
	}
	if m := yearRestRe.FindStringSubmatch(name); m != nil && plausibleYear(m[2]) {
		return ParsedTitle{Title: cleanTitle(m[1]), Year: atoi(m[2]), Quality: m[3]}
	}
	if m := yearOnlyRe.FindStringSubmatch(name); m != nil && plausibleYear(m[2]) {
		return ParsedTitle{Title: cleanTitle(m[1]), Year: atoi(m[2])}
	}

	title := cleanTitle(name)
	if title == "" {
		title = name
	}
	return ParsedTitle{Title: title}
}

// CleanTitle turns a release-style file name into a search query: the
// extension, separators, year and quality or codec tags are dropped.
func CleanTitle(filename string) string {
	return ParseFilename(filename).Title
}

func normalizeName(filename string) string {
	name := strings.TrimSpace(filename)
	if ext := filepath.Ext(name); mediatypes.IsConvertible(ext) {
		name = strings.TrimSuffix(name, ext)
	}
	name = separatorRe.ReplaceAllString(name, " ")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(name, " "))
}

func cleanTitle(title string) string {
	title = strings.ReplaceAll(title, "-", " ")
	title = separatorRe.ReplaceAllString(title, " ")
	title = qualityTagRe.ReplaceAllString(title, "")
	title = codecTagRe.ReplaceAllString(title, "")
	title = emptyBracketRe.ReplaceAllString(title, "")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(title, " "))
}

func plausibleYear(s string) bool {
	y := atoi(s)
	return y >= 1880 && y <= 2100
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
