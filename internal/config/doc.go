// Package config loads, normalizes, and validates transcodehost configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// TRANSCODER_PORT and FFMPEG_PATH. Both the build-time provisioner and the
// runtime supervisor read their settings through the Config type so paths
// and ports are resolved in exactly one place.
package config
