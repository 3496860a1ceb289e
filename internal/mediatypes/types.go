package mediatypes

import (
	"path/filepath"
	"strings"
)

// FileType represents the role of a file in the ingest pipeline.
type FileType string

const (
	// FileTypeSource is an uploaded source video.
	FileTypeSource FileType = "source"
	// FileTypePlaylist is an HLS playlist.
	FileTypePlaylist FileType = "playlist"
	// FileTypeSegment is an HLS media segment.
	FileTypeSegment FileType = "segment"
	// FileTypePoster is a poster thumbnail.
	FileTypePoster FileType = "poster"
	// FileTypeOther represents an unknown or unsupported file type.
	FileTypeOther FileType = "other"
)

// AllowedVideoExtensions is the container allow-list for uploads. The check
// is syntactic only; container internals are not inspected.
var AllowedVideoExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".webm": true,
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	// Sources
	".mp4":  "video/mp4",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".webm": "video/webm",

	// HLS output
	".m3u8": "application/vnd.apple.mpegurl",
	".ts":   "video/mp2t",
	".jpg":  "image/jpeg",
}

// Ext returns the lowercase extension of name including the leading dot.
func Ext(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// IsAllowedVideo reports whether name carries an allowed container extension.
func IsAllowedVideo(name string) bool {
	return AllowedVideoExtensions[Ext(name)]
}

// AllowedList returns the allow-list as a sorted, comma separated string
// for use in rejection messages.
func AllowedList() string {
	return "avi, mkv, mov, mp4, webm"
}

// GetFileType returns the FileType for a given file extension.
// The extension should be lowercase and include the leading dot (e.g., ".mp4").
func GetFileType(ext string) FileType {
	switch {
	case AllowedVideoExtensions[ext]:
		return FileTypeSource
	case ext == ".m3u8":
		return FileTypePlaylist
	case ext == ".ts":
		return FileTypeSegment
	case ext == ".jpg":
		return FileTypePoster
	}
	return FileTypeOther
}

// GetMimeType returns the MIME type for a given file extension.
// Returns "application/octet-stream" if the extension is not recognized.
func GetMimeType(ext string) string {
	if mime, ok := MimeTypes[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}
