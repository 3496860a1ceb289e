// Package mediatypes provides shared type definitions for the files the
// ingest service accepts and produces.
//
// This package exists as a dependency-free foundation that can be imported by other
// packages without creating import cycles.
//
// # Upload Allow-list
//
// Uploads are accepted only with one of the extensions in
// AllowedVideoExtensions (mp4, mkv, avi, mov, webm):
//
//	if !mediatypes.IsAllowedVideo(filename) {
//	    // reject before any probing
//	}
//
// # MIME Types
//
// GetMimeType maps extensions of both sources and HLS output (playlist,
// segments, poster) to the Content-Type served over HTTP.
package mediatypes
