// Package mediatypes classifies files by extension for the converter.
//
// It has no dependencies beyond the standard library so any package can
// import it without creating cycles.
//
//	switch mediatypes.FromPath(path) {
//	case mediatypes.FileTypeImage:
//	    // decode directly
//	case mediatypes.FileTypeVideo, mediatypes.FileTypeAudio:
//	    // hand to ffmpeg
//	}
//
// Extensions are matched case-insensitively. GetMimeType returns
// "application/octet-stream" for unknown extensions.
package mediatypes
