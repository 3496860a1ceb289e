// Package transcoder invokes FFmpeg to package a source video as a single
// rendition HLS stream, and FFprobe to read a container's duration.
//
// Both tools run through a process.Runner so that every invocation has a
// wall-clock budget and is killed, with its process group, when the budget
// or the caller's context runs out. Only the exit status decides success;
// captured output is kept for diagnostics.
//
// Tool paths come from FFMPEG_PATH and FFPROBE_PATH, falling back to PATH.
package transcoder
