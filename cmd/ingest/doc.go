// Command ingest runs the HLS ingest pipeline from the command line,
// against the same upload directory, output root and database as the
// server.
//
// Usage:
//
//	ingest <command> [arguments]
//
// Commands:
//
//	add [-label LABEL] FILE...
//	        Copy each file into the upload directory and ingest it.
//	        Files are processed concurrently, one encoder per
//	        ENCODER_THREADS CPUs (capped at 8, or INGEST_WORKERS).
//	        New files wait while the process is under memory pressure.
//
//	status ID
//	        Print one asset record.
//
//	process ID
//	        Run the pipeline for an asset that is still in state created.
//	        Any other state fails with already_processed.
//
//	list [-state STATE] [-limit N]
//	        List asset records, newest first.
//
//	recover
//	        Reject assets left in transcoding by a crash and remove their
//	        partial output. Refused while the server or another add or
//	        process command holds the run lock next to the database; the
//	        server recovers by itself at startup.
//
// When stdout is a terminal the output is a human readable summary.
// Otherwise every result is written as one JSON object per line.
//
// Exit status is 0 on success, 1 when any asset failed or was rejected and
// 2 on a usage error.
//
// Configuration is read from the environment (and .env) exactly as the
// server reads it; see package startup for the variables.
package main
