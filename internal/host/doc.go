// Package host coordinates the long-running transcodehost process.
//
// It wires configuration, the transcoder supervisor, launch history and
// the optional metrics endpoint into a single lifecycle with flock-based
// locking to prevent multiple instances. Stopping the host suppresses
// restarts and terminates the live transcoder as part of teardown.
//
// Keep orchestration logic here: supervision policy lives in the
// supervisor package while the host focuses on startup, shutdown, and
// high level coordination.
package host
