package mediatypes

import (
	"path/filepath"
	"strings"
)

// FileType classifies an input file by extension.
type FileType string

const (
	// FileTypeVideo is a container ffmpeg can convert.
	FileTypeVideo FileType = "video"
	// FileTypeAudio is an audio-only file.
	FileTypeAudio FileType = "audio"
	// FileTypeImage is a still image decodable without ffmpeg.
	FileTypeImage FileType = "image"
	// FileTypeSubtitle is a subtitle sidecar file.
	FileTypeSubtitle FileType = "subtitle"
	// FileTypeOther is anything else.
	FileTypeOther FileType = "other"
)

// VideoExtensions maps file extensions to whether they are video containers.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".wmv":  true,
	".flv":  true,
	".webm": true,
	".m4v":  true,
	".mpeg": true,
	".mpg":  true,
	".3gp":  true,
	".ts":   true,
	".m2ts": true,
	".mts":  true,
	".vob":  true,
	".ogv":  true,
}

// AudioExtensions maps file extensions to whether they are audio files.
var AudioExtensions = map[string]bool{
	".mp3":  true,
	".aac":  true,
	".m4a":  true,
	".flac": true,
	".wav":  true,
	".ogg":  true,
	".opus": true,
	".mka":  true,
	".wma":  true,
}

// ImageExtensions are the stills the preview generator decodes itself.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// SubtitleExtensions maps file extensions to whether they are subtitle files.
var SubtitleExtensions = map[string]bool{
	".srt": true,
	".ass": true,
	".ssa": true,
	".vtt": true,
	".sub": true,
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	// Video
	".mp4":  "video/mp4",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".webm": "video/webm",
	".m4v":  "video/x-m4v",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".3gp":  "video/3gpp",
	".ts":   "video/mp2t",
	".m2ts": "video/mp2t",
	".ogv":  "video/ogg",

	// Audio
	".mp3":  "audio/mpeg",
	".aac":  "audio/aac",
	".m4a":  "audio/mp4",
	".flac": "audio/flac",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".opus": "audio/opus",
	".mka":  "audio/x-matroska",

	// Images
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",

	// Subtitles
	".srt": "application/x-subrip",
	".vtt": "text/vtt",
}

// Ext returns the lowercase extension of path including the dot.
func Ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// GetFileType returns the FileType for a given file extension.
// The extension is matched case-insensitively and must include the leading dot.
func GetFileType(ext string) FileType {
	ext = strings.ToLower(ext)
	switch {
	case VideoExtensions[ext]:
		return FileTypeVideo
	case AudioExtensions[ext]:
		return FileTypeAudio
	case ImageExtensions[ext]:
		return FileTypeImage
	case SubtitleExtensions[ext]:
		return FileTypeSubtitle
	default:
		return FileTypeOther
	}
}

// FromPath classifies path by its extension.
func FromPath(path string) FileType {
	return GetFileType(Ext(path))
}

// GetMimeType returns the MIME type for a given file extension, or
// "application/octet-stream" if the extension is not recognized.
func GetMimeType(ext string) string {
	if mime, ok := MimeTypes[strings.ToLower(ext)]; ok {
		return mime
	}
	return "application/octet-stream"
}

// IsConvertible reports whether ffmpeg input of this extension is expected
// to carry audio or video streams.
func IsConvertible(ext string) bool {
	t := GetFileType(ext)
	return t == FileTypeVideo || t == FileTypeAudio
}
