// Package pipeline runs an uploaded video through validation, HLS
// transcoding and publication as one unit.
//
// An asset becomes visible as processed only when every step succeeded.
// Whatever goes wrong after the output directory was claimed, the
// directory is removed first, then the record is marked rejected, and only
// then is the error returned to the caller. Nothing is retried.
//
// Recover treats every asset in transcoding as abandoned. Run it only while
// holding database.RunLock exclusively, so no other process is mid-run.
//
// Typical use:
//
//	p := pipeline.New(pipeline.Deps{...}, pipeline.Config{OutputRoot: "/media/processed"})
//	if _, err := p.Recover(ctx); err != nil { ... }
//	asset, err := p.Ingest(ctx, pipeline.Upload{Name: "clip.mp4", Path: path, Size: size})
package pipeline
