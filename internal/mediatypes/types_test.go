package mediatypes

import (
	"strings"
	"testing"
)

func TestIsAllowedVideo(t *testing.T) {
	tests := []struct {
		name string
		file string
		want bool
	}{
		{"mp4", "clip.mp4", true},
		{"mkv", "clip.mkv", true},
		{"avi", "clip.avi", true},
		{"mov", "clip.mov", true},
		{"webm", "clip.webm", true},
		{"uppercase", "CLIP.MP4", true},
		{"double extension", "archive.mp4.zip", false},
		{"wmv not allowed", "clip.wmv", false},
		{"flv not allowed", "clip.flv", false},
		{"no extension", "clip", false},
		{"dot only", "clip.", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAllowedVideo(tt.file); got != tt.want {
				t.Errorf("IsAllowedVideo(%q) = %v, want %v", tt.file, got, tt.want)
			}
		})
	}
}

func TestGetFileType(t *testing.T) {
	tests := []struct {
		ext  string
		want FileType
	}{
		{".mp4", FileTypeSource},
		{".m3u8", FileTypePlaylist},
		{".ts", FileTypeSegment},
		{".jpg", FileTypePoster},
		{".xyz", FileTypeOther},
		{"", FileTypeOther},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			if got := GetFileType(tt.ext); got != tt.want {
				t.Errorf("GetFileType(%q) = %v, want %v", tt.ext, got, tt.want)
			}
		})
	}
}

func TestGetMimeType(t *testing.T) {
	tests := []struct {
		ext  string
		want string
	}{
		{".m3u8", "application/vnd.apple.mpegurl"},
		{".ts", "video/mp2t"},
		{".mp4", "video/mp4"},
		{".unknown", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			if got := GetMimeType(tt.ext); got != tt.want {
				t.Errorf("GetMimeType(%q) = %q, want %q", tt.ext, got, tt.want)
			}
		})
	}
}

func TestAllowedListMatchesMap(t *testing.T) {
	for ext := range AllowedVideoExtensions {
		name := ext[1:]
		found := false
		for _, part := range strings.Split(AllowedList(), ",") {
			if strings.TrimSpace(part) == name {
				found = true
			}
		}
		if !found {
			t.Errorf("AllowedList() missing %q", name)
		}
	}
}
