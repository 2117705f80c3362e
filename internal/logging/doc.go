// Package logging assembles structured slog loggers used by the provisioner
// CLI and the runtime supervisor host.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and defines the standard field keys (component, run_id, pid,
// platform) so supervised child output and provisioning steps produce lines
// with the same shape. A no-op logger is provided for tests and wiring code
// that cannot fail.
package logging
