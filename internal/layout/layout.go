// Package layout computes where the HLS artifacts of an asset live.
//
// The layout is a pure function of the output root, the publication year and
// the asset; nothing here touches the filesystem.
//
//	<root>/<yy>/stream_<base>_<id>/playlist.m3u8
//	<root>/<yy>/stream_<base>_<id>/segment_000.ts
package layout

import (
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	PlaylistName   = "playlist.m3u8"
	SegmentPattern = "segment_%03d.ts"
	PosterName     = "poster.jpg"

	// yearLayout is the two digit year used for output sharding.
	yearLayout = "06"

	maxBaseLen  = 64
	defaultBase = "video"
)

// Layout is the set of paths for one transcode attempt.
type Layout struct {
	Root           string
	Year           string
	Name           string
	Dir            string
	PlaylistPath   string
	SegmentPattern string
	PosterPath     string
}

// For returns the layout for asset id with the given source filename,
// published at time now under root.
func For(root string, now time.Time, id int64, sourceName string) Layout {
	year := now.Format(yearLayout)
	name := "stream_" + SanitizeBase(sourceName) + "_" + strconv.FormatInt(id, 10)
	dir := filepath.Join(root, year, name)

	return Layout{
		Root:           root,
		Year:           year,
		Name:           name,
		Dir:            dir,
		PlaylistPath:   filepath.Join(dir, PlaylistName),
		SegmentPattern: filepath.Join(dir, SegmentPattern),
		PosterPath:     filepath.Join(dir, PosterName),
	}
}

// Rel returns the output directory relative to the root, slash separated.
func (l Layout) Rel() string {
	return path.Join(l.Year, l.Name)
}

// RelPlaylist returns the playlist path relative to the root.
func (l Layout) RelPlaylist() string {
	return path.Join(l.Year, l.Name, PlaylistName)
}

// RelPoster returns the poster path relative to the root.
func (l Layout) RelPoster() string {
	return path.Join(l.Year, l.Name, PosterName)
}

// Reference builds the public reference for a file relative to the root.
// With an empty baseURL the reference is the relative path under prefix.
func Reference(prefix, baseURL, rel string) string {
	ref := path.Join(strings.Trim(prefix, "/"), rel)
	if baseURL == "" {
		return ref
	}
	return strings.TrimRight(baseURL, "/") + "/" + ref
}

// SanitizeBase reduces a filename to a safe directory component: the
// extension is dropped and anything outside [A-Za-z0-9._-] becomes '_'.
func SanitizeBase(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))

	var b strings.Builder
	lastUnderscore := false
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}

	out := strings.Trim(b.String(), "._-")
	if len(out) > maxBaseLen {
		out = strings.TrimRight(out[:maxBaseLen], "._-")
	}
	if out == "" {
		return defaultBase
	}
	return out
}
