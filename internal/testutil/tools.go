// Package testutil provides stand-in ffmpeg and ffprobe executables for
// tests. The stand-ins are small shell scripts, so tests using them are
// skipped where no POSIX shell is available.
package testutil

import (
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// Tool is a stand-in executable that logs one line per invocation.
type Tool struct {
	Path     string
	callsLog string
}

// Calls returns how many times the tool was executed.
func (tl Tool) Calls(t *testing.T) int {
	t.Helper()
	data, err := os.ReadFile(tl.callsLog)
	if os.IsNotExist(err) {
		return 0
	}
	if err != nil {
		t.Fatalf("Failed to read calls log: %v", err)
	}
	return strings.Count(string(data), "\n")
}

// RequireShell skips the test when /bin/sh is unavailable.
func RequireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
}

// WriteScript writes an executable shell script and returns its path.
func WriteScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	RequireShell(t)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("Failed to write script %s: %v", name, err)
	}
	return path
}

func newTool(t *testing.T, name, body string) Tool {
	t.Helper()
	dir := t.TempDir()
	callsLog := filepath.Join(dir, "calls.log")
	path := WriteScript(t, dir, name, `echo "$@" >> "`+callsLog+`"
`+body)
	return Tool{Path: path, callsLog: callsLog}
}

// hlsBody writes a two segment playlist into the directory of the last
// argument. A poster extraction (-frames:v) copies the poster fixture.
const hlsBody = `last=""
seg=""
poster=0
while [ $# -gt 0 ]; do
  case "$1" in
    -hls_segment_filename) seg="$2" ;;
    -frames:v) poster=1 ;;
  esac
  last="$1"
  shift
done
if [ "$poster" = "1" ]; then
  cp "%POSTER%" "$last" || exit 1
  exit 0
fi
dir=$(dirname "$last")
printf '#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:6\n#EXT-X-INDEPENDENT-SEGMENTS\n#EXTINF:6.000000,\nsegment_000.ts\n#EXTINF:2.500000,\nsegment_001.ts\n#EXT-X-ENDLIST\n' > "$last" || exit 1
echo "ts0" > "$dir/segment_000.ts" || exit 1
echo "ts1" > "$dir/segment_001.ts" || exit 1
echo "encoded $seg" >&2
`

// FakeFFmpeg returns an encoder that writes a valid two segment HLS
// package and can extract a poster frame.
func FakeFFmpeg(t *testing.T) Tool {
	t.Helper()
	poster := filepath.Join(t.TempDir(), "frame.jpg")
	WriteJPEG(t, poster, 64, 36)
	return newTool(t, "ffmpeg", strings.ReplaceAll(hlsBody, "%POSTER%", poster))
}

// NoSegmentsFFmpeg returns an encoder that exits 0 but writes a playlist
// whose segments do not exist.
func NoSegmentsFFmpeg(t *testing.T) Tool {
	t.Helper()
	return newTool(t, "ffmpeg", `for last; do :; done
printf '#EXTM3U\n#EXTINF:6.0,\nsegment_000.ts\n#EXT-X-ENDLIST\n' > "$last"`)
}

// FailingFFmpeg returns an encoder that writes a partial segment and exits
// with code.
func FailingFFmpeg(t *testing.T, code string) Tool {
	t.Helper()
	return newTool(t, "ffmpeg", `for last; do :; done
echo partial > "$(dirname "$last")/segment_000.ts"
echo "Invalid data found when processing input" >&2
exit `+code)
}

// HangingFFmpeg returns an encoder that writes a partial segment and then
// never exits on its own.
func HangingFFmpeg(t *testing.T) Tool {
	t.Helper()
	return newTool(t, "ffmpeg", `for last; do :; done
echo partial > "$(dirname "$last")/segment_000.ts"
sleep 60`)
}

// FakeFFprobe returns a prober that prints output and exits with code.
func FakeFFprobe(t *testing.T, output, code string) Tool {
	t.Helper()
	return newTool(t, "ffprobe", `printf '%s\n' "`+output+`"
exit `+code)
}

// WriteJPEG writes a solid color JPEG image.
func WriteJPEG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 80, B: 40, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create %s: %v", path, err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, img, nil); err != nil {
		t.Fatalf("Failed to encode jpeg: %v", err)
	}
}

// WriteSource writes a fake source video of size bytes.
func WriteSource(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("Failed to write source: %v", err)
	}
	return path
}
