package handlers

import (
	"net/http"
	"strings"

	"hls-ingest/internal/mediatypes"
)

// ProcessedFiles serves published HLS files from the output root under
// PathPrefix. Only playlists, segments and posters are served; directory
// listings are not.
func (h *Handlers) ProcessedFiles() http.Handler {
	files := http.StripPrefix(strings.TrimSuffix(h.PathPrefix(), "/"), http.FileServer(http.Dir(h.outputRoot)))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}

		ext := mediatypes.Ext(r.URL.Path)
		switch mediatypes.GetFileType(ext) {
		case mediatypes.FileTypePlaylist:
			w.Header().Set("Cache-Control", "no-cache")
		case mediatypes.FileTypeSegment, mediatypes.FileTypePoster:
			w.Header().Set("Cache-Control", "public, max-age=86400")
		default:
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", mediatypes.GetMimeType(ext))

		files.ServeHTTP(w, r)
	})
}
