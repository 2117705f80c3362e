// Package main hosts the transcodehost CLI entrypoint and command graph.
//
// The Cobra command tree covers the two halves of the system: the build-time
// `provision` step that unpacks the per-platform ffmpeg bundle, and the
// runtime `run` command that keeps the transcoder child process alive.
// Supporting commands inspect binary resolution (`check`), launch history
// (`history`) and scaffold configuration (`config init`).
//
// Keep this package lean: behaviour belongs in the internal packages and is
// only surfaced here through flags and output formatting.
package main
