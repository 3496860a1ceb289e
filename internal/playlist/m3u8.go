package playlist

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
)

var (
	// ErrNotM3U8 is returned when the file does not start with #EXTM3U.
	ErrNotM3U8 = errors.New("not an m3u8 playlist")
	// ErrMasterPlaylist is returned when a master (variant) playlist is
	// parsed as a media playlist.
	ErrMasterPlaylist = errors.New("master playlist where media playlist expected")
)

// Playlist is a parsed HLS media playlist.
type Playlist struct {
	Path                string    `json:"path"`
	Version             int       `json:"version"`
	TargetDuration      int       `json:"targetDuration"`
	IndependentSegments bool      `json:"independentSegments"`
	Endlist             bool      `json:"endlist"`
	Segments            []Segment `json:"segments"`
	Count               int       `json:"count"`
}

// Segment is one media segment entry.
type Segment struct {
	URI      string  `json:"uri"`
	Duration float64 `json:"duration"`
	// Path is the resolved local path, empty when URI is remote or escapes
	// the playlist directory.
	Path   string `json:"path,omitempty"`
	Exists bool   `json:"exists"`
}

// TotalDuration sums the EXTINF durations.
func (p *Playlist) TotalDuration() float64 {
	var total float64
	for _, s := range p.Segments {
		total += s.Duration
	}
	return total
}

// Missing returns the URIs of segments that were not found next to the
// playlist.
func (p *Playlist) Missing() []string {
	var missing []string
	for _, s := range p.Segments {
		if !s.Exists {
			missing = append(missing, s.URI)
		}
	}
	return missing
}

// ParseMedia reads an HLS media playlist and resolves each segment URI
// relative to the playlist's directory.
func ParseMedia(playlistPath string) (*Playlist, error) {
	f, err := os.Open(playlistPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pl := &Playlist{Path: playlistPath}
	dir := filepath.Dir(playlistPath)

	scanner := bufio.NewScanner(f)
	lineNo := 0
	sawHeader := false
	pendingDuration := -1.0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if lineNo == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		if line == "" {
			continue
		}

		if !sawHeader {
			if line != "#EXTM3U" {
				return nil, fmt.Errorf("%s: %w", playlistPath, ErrNotM3U8)
			}
			sawHeader = true
			continue
		}

		if strings.HasPrefix(line, "#") {
			tag, value, _ := strings.Cut(line, ":")
			switch tag {
			case "#EXT-X-VERSION":
				pl.Version, _ = strconv.Atoi(value)
			case "#EXT-X-TARGETDURATION":
				pl.TargetDuration, _ = strconv.Atoi(value)
			case "#EXT-X-INDEPENDENT-SEGMENTS":
				pl.IndependentSegments = true
			case "#EXT-X-ENDLIST":
				pl.Endlist = true
			case "#EXT-X-STREAM-INF":
				return nil, fmt.Errorf("%s: %w", playlistPath, ErrMasterPlaylist)
			case "#EXTINF":
				durText, _, _ := strings.Cut(value, ",")
				d, err := strconv.ParseFloat(strings.TrimSpace(durText), 64)
				if err != nil {
					return nil, fmt.Errorf("%s:%d: invalid EXTINF duration %q", playlistPath, lineNo, durText)
				}
				pendingDuration = d
			}
			continue
		}

		if pendingDuration < 0 {
			return nil, fmt.Errorf("%s:%d: segment %q without EXTINF", playlistPath, lineNo, line)
		}
		pl.Segments = append(pl.Segments, resolveSegment(dir, line, pendingDuration))
		pendingDuration = -1
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if !sawHeader {
		return nil, fmt.Errorf("%s: %w", playlistPath, ErrNotM3U8)
	}

	pl.Count = len(pl.Segments)
	return pl, nil
}

// resolveSegment maps a segment URI to a file inside dir. Remote URIs and
// paths that leave dir are left unresolved.
func resolveSegment(dir, uri string, duration float64) Segment {
	seg := Segment{URI: uri, Duration: duration}

	if strings.Contains(uri, "://") || path.IsAbs(uri) {
		return seg
	}
	clean := path.Clean(uri)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return seg
	}

	seg.Path = filepath.Join(dir, filepath.FromSlash(clean))
	seg.Exists = fileExists(seg.Path)
	return seg
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}
