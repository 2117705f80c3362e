// Package platform describes the closed set of platform tags the ffmpeg
// bundle is built for and the on-disk layout derived from them.
//
// The layout is a contract other tooling depends on:
//
//	<root>/ffmpeg<tag>.zip           input archive, removed after extraction
//	<root>/ffmpeg<tag>/ffmpeg[.exe]  engine binary
//	<root>/ffmpeg<tag>/ffprobe[.exe] probe binary
//
// Only the "win" tag carries the ".exe" suffix.
package platform
