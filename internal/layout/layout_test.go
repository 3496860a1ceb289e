package layout

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFor(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	l := For("/media/processed", now, 42, "Holiday Clip.mp4")

	if l.Year != "26" {
		t.Errorf("Year = %q, want 26", l.Year)
	}
	if l.Name != "stream_Holiday_Clip_42" {
		t.Errorf("Name = %q", l.Name)
	}
	wantDir := filepath.Join("/media/processed", "26", "stream_Holiday_Clip_42")
	if l.Dir != wantDir {
		t.Errorf("Dir = %q, want %q", l.Dir, wantDir)
	}
	if l.PlaylistPath != filepath.Join(wantDir, "playlist.m3u8") {
		t.Errorf("PlaylistPath = %q", l.PlaylistPath)
	}
	if l.SegmentPattern != filepath.Join(wantDir, "segment_%03d.ts") {
		t.Errorf("SegmentPattern = %q", l.SegmentPattern)
	}
	if l.RelPlaylist() != "26/stream_Holiday_Clip_42/playlist.m3u8" {
		t.Errorf("RelPlaylist = %q", l.RelPlaylist())
	}
	if l.Rel() != "26/stream_Holiday_Clip_42" {
		t.Errorf("Rel = %q", l.Rel())
	}
}

func TestForDistinctAssetsSameName(t *testing.T) {
	now := time.Now()
	a := For("/out", now, 1, "clip.mp4")
	b := For("/out", now, 2, "clip.mp4")
	if a.Dir == b.Dir {
		t.Errorf("assets with the same filename share %q", a.Dir)
	}
}

func TestSanitizeBase(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple", "clip.mp4", "clip"},
		{"spaces", "my holiday video.mov", "my_holiday_video"},
		{"runs collapse", "a  &&  b.mkv", "a_b"},
		{"keeps dash and dot", "v1.2-final.webm", "v1.2-final"},
		{"path traversal", "../../etc/passwd.mp4", "passwd"},
		{"windows path", `C:\Users\me\clip.avi`, "clip"},
		{"dot only", "..", "video"},
		{"empty", "", "video"},
		{"unicode", "vidéo.mp4", "vid_o"},
		{"no extension", "rawclip", "rawclip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeBase(tt.input); got != tt.expected {
				t.Errorf("SanitizeBase(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSanitizeBaseLength(t *testing.T) {
	got := SanitizeBase(strings.Repeat("x", 200) + ".mp4")
	if len(got) > maxBaseLen {
		t.Errorf("len = %d, want <= %d", len(got), maxBaseLen)
	}
}

func TestReference(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		baseURL  string
		expected string
	}{
		{"relative", "processed", "", "processed/26/stream_a_1/playlist.m3u8"},
		{"prefix slashes", "/processed/", "", "processed/26/stream_a_1/playlist.m3u8"},
		{"base url", "processed", "https://cdn.example.com/", "https://cdn.example.com/processed/26/stream_a_1/playlist.m3u8"},
		{"no prefix", "", "", "26/stream_a_1/playlist.m3u8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reference(tt.prefix, tt.baseURL, "26/stream_a_1/playlist.m3u8")
			if got != tt.expected {
				t.Errorf("Reference = %q, want %q", got, tt.expected)
			}
		})
	}
}
