package transcoder

import (
	"strconv"

	"hls-ingest/internal/layout"
)

// Profile holds the encoder settings for the single HLS rendition.
// The defaults favor broad device compatibility and low server load.
type Profile struct {
	Threads         int
	VideoCodec      string
	Preset          string
	H264Profile     string
	Level           string
	MaxrateKbps     int
	CRF             int
	AudioCodec      string
	AudioBitrate    string
	AudioChannels   int
	AudioSampleRate int
	SegmentSeconds  int
	ListSize        int
	HLSFlags        string
	SegmentType     string
}

// DefaultProfile returns the baseline H.264/AAC profile.
func DefaultProfile() Profile {
	return Profile{
		Threads:         2,
		VideoCodec:      "libx264",
		Preset:          "veryfast",
		H264Profile:     "baseline",
		Level:           "3.0",
		MaxrateKbps:     2000,
		CRF:             27,
		AudioCodec:      "aac",
		AudioBitrate:    "128k",
		AudioChannels:   2,
		AudioSampleRate: 44100,
		SegmentSeconds:  6,
		ListSize:        0,
		HLSFlags:        "independent_segments",
		SegmentType:     "mpegts",
	}
}

// Args builds the ffmpeg argument list that encodes input into l.
// The output is always overwritten (-y) inside the attempt's own directory.
func (p Profile) Args(input string, l layout.Layout) []string {
	return []string{
		"-i", input,
		"-threads", strconv.Itoa(p.Threads),
		"-c:v", p.VideoCodec,
		"-preset", p.Preset,
		"-profile:v", p.H264Profile,
		"-level", p.Level,
		"-maxrate", strconv.Itoa(p.MaxrateKbps) + "k",
		"-bufsize", strconv.Itoa(p.MaxrateKbps*2) + "k",
		"-crf", strconv.Itoa(p.CRF),
		"-c:a", p.AudioCodec,
		"-b:a", p.AudioBitrate,
		"-ac", strconv.Itoa(p.AudioChannels),
		"-ar", strconv.Itoa(p.AudioSampleRate),
		"-hls_time", strconv.Itoa(p.SegmentSeconds),
		"-hls_list_size", strconv.Itoa(p.ListSize),
		"-hls_flags", p.HLSFlags,
		"-hls_segment_type", p.SegmentType,
		"-hls_segment_filename", l.SegmentPattern,
		"-f", "hls",
		"-y", l.PlaylistPath,
	}
}
