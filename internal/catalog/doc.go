// Package catalog keeps an SQLite index of recording sessions: where each
// playback file was written, when it started and stopped, how many lines
// it holds, and whether it ended normally.
//
// The database lives in the state directory as recordings.db.
package catalog
