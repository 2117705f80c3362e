// Package provision installs the ffmpeg/ffprobe binary bundle for one
// platform from its archive.
//
// A run locates <root>/ffmpeg<tag>.zip, wipes and recreates the target
// directory, extracts the archive, removes one level of wrapper nesting,
// deletes the archive, and verifies that both binaries exist. A missing
// archive is not fatal: verification still runs so that bundles placed
// out-of-band are accepted. Concurrent runs against the same root are
// serialized through a lock file.
package provision
