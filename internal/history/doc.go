// Package history persists a record of every transcoder launch in SQLite.
//
// Each launch becomes one row keyed by its run id; the exit code and
// outcome are filled in when the child terminates. The store backs the
// `history` command and is fed by Recorder, a supervisor observer.
package history
