package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"transcodehost/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.FFmpegRoot = filepath.Join(base, "ffmpeg")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Transcoder.EntryPoint = filepath.Join(base, "transcoder", "server.sh")
	cfgVal.Transcoder.Interpreter = ""
	cfgVal.Transcoder.RestartDelaySeconds = 1
	cfgVal.Metrics.Bind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithEntryPointScript writes an executable entry point script with body.
func WithEntryPointScript(body string) ConfigOption {
	return func(b *configBuilder) {
		WriteScript(b.t, b.cfg.Transcoder.EntryPoint, body)
	}
}

// WithPort overrides the transcoder port on the test config.
func WithPort(port int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Transcoder.Port = port
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg and ffprobe are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		for _, name := range names {
			WriteScript(b.t, filepath.Join(binDir, name), "exit 0")
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
