package preflight

import (
	"context"

	"transcodehost/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckEntryPoint(cfg.Transcoder.EntryPoint),
		CheckDirectoryAccess("FFmpeg root", cfg.Paths.FFmpegRoot),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
	}
	if cfg.Transcoder.Interpreter != "" {
		results = append(results, CheckInterpreter(cfg.Transcoder.Interpreter))
	}
	results = append(results, CheckPortAvailable(ctx, "Transcoder port", cfg.Transcoder.Port))
	return results
}
