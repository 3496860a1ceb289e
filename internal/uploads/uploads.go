// Package uploads stores raw upload bytes under the upload directory and
// fingerprints them. Each upload gets its own directory so concurrent
// uploads of the same filename never collide.
//
//	<dir>/<yy>/<uuid>/<sanitized name><ext>
package uploads

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hls-ingest/internal/layout"
	"hls-ingest/internal/logging"
	"hls-ingest/internal/mediatypes"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// ErrTooLarge is returned when an upload exceeds the store's byte limit.
var ErrTooLarge = errors.New("upload exceeds size limit")

var log = logging.For("uploads")

// Store writes uploads below a directory.
type Store struct {
	dir   string
	limit int64
	now   func() time.Time
}

// File is a stored upload.
type File struct {
	// Name is the client supplied filename, reduced to its base.
	Name string
	Path string
	Size int64
	// Hash is the hex BLAKE2b-256 digest of the content.
	Hash string
}

// New creates a Store rooted at dir. A positive limit bounds the bytes
// accepted per upload.
func New(dir string, limit int64) *Store {
	return &Store{dir: dir, limit: limit, now: time.Now}
}

// Save copies r into a new upload directory. On error nothing is left
// behind.
func (s *Store) Save(r io.Reader, name string) (*File, error) {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" {
		base = ""
	}

	dir := filepath.Join(s.dir, s.now().Format("06"), uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	stored := layout.SanitizeBase(base) + mediatypes.Ext(base)
	path := filepath.Join(dir, stored)

	size, hash, err := s.write(path, r)
	if err != nil {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			log.Warn("failed to remove partial upload %s: %v", dir, rmErr)
		}
		return nil, err
	}

	log.Debug("stored %s (%d bytes) at %s", base, size, path)
	return &File{Name: base, Path: path, Size: size, Hash: hash}, nil
}

func (s *Store) write(path string, r io.Reader) (int64, string, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, "", fmt.Errorf("failed to create upload file: %w", err)
	}

	h, err := blake2b.New256(nil)
	if err != nil {
		f.Close()
		return 0, "", err
	}

	src := r
	if s.limit > 0 {
		src = io.LimitReader(r, s.limit+1)
	}
	n, err := io.Copy(io.MultiWriter(f, h), src)
	if err == nil && s.limit > 0 && n > s.limit {
		err = ErrTooLarge
	}
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		if errors.Is(err, ErrTooLarge) {
			return 0, "", err
		}
		return 0, "", fmt.Errorf("failed to write upload: %w", err)
	}

	return n, hex.EncodeToString(h.Sum(nil)), nil
}

// Remove deletes the upload directory holding path. Paths outside the
// store are refused.
func (s *Store) Remove(path string) error {
	dir := filepath.Dir(path)
	rel, err := filepath.Rel(s.dir, dir)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
		return fmt.Errorf("refusing to remove %s: outside upload directory", path)
	}
	return os.RemoveAll(dir)
}
