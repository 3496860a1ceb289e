// Package playlist parses HLS media playlists (RFC 8216 .m3u8 files).
//
// Only the subset written by a single-rendition encode is understood:
// version, target duration, independent segments, EXTINF entries and the
// end list marker. Master playlists are rejected.
//
// Segment URIs are resolved relative to the playlist's directory so callers
// can check that every referenced segment was actually written. URIs that
// are remote, absolute, or escape the directory are never resolved.
package playlist
