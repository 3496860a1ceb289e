// Package database provides SQLite storage for ingested assets.
//
// Each asset row moves through created, transcoding and then published or
// rejected. Every transition is a single conditional UPDATE keyed on the
// expected current state, so a published reference is written in the same
// statement that marks the asset published, and an asset can be claimed by
// only one pipeline run.
//
// The database uses WAL mode so status reads do not block on a publishing
// write, and includes automatic schema initialization and migration.
package database
