package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"transcodehost/internal/config"
	"transcodehost/internal/host"
	"transcodehost/internal/logging"
	"transcodehost/internal/platform"
	"transcodehost/internal/provision"
	"transcodehost/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	for _, key := range []string{"TRANSCODEHOST_ROOT", "TRANSCODER_PORT", "FFMPEG_PATH"} {
		t.Setenv(key, "")
	}
	cfg := testsupport.NewConfig(t, opts...)
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected %q in output:\n%s", needle, haystack)
	}
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCommand()
	want := []string{"provision", "run", "check", "history", "config"}
	for _, name := range want {
		found := false
		for _, cmd := range root.Commands() {
			if cmd.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("expected subcommand %q", name)
		}
	}
	for _, flag := range []string{"config", "log-level"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Fatalf("expected persistent flag --%s", flag)
		}
	}
}

func TestProvisionCommandArguments(t *testing.T) {
	env := setupCLITestEnv(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "missing tag", args: []string{"provision"}, want: "accepts 1 arg"},
		{name: "extra tag", args: []string{"provision", "win", "mac"}, want: "accepts 1 arg"},
		{name: "unknown tag", args: []string{"provision", "bsd"}, want: "unknown platform"},
		{name: "unknown extractor", args: []string{"provision", "linux", "--extractor", "rar"}, want: "extractor"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runCLI(t, tt.args, env.configPath)
			if err == nil {
				t.Fatalf("expected error for %v", tt.args)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestProvisionCommandExtractsNestedArchive(t *testing.T) {
	env := setupCLITestEnv(t)
	root := filepath.Join(env.baseDir, "bundles")
	testsupport.WriteZip(t, filepath.Join(root, "ffmpegwin.zip"), map[string]string{
		"ffmpeg-7.1-essentials/":            "",
		"ffmpeg-7.1-essentials/ffmpeg.exe":  "engine",
		"ffmpeg-7.1-essentials/ffprobe.exe": "probe",
	})

	out, _, err := runCLI(t, []string{"provision", "win", "--root", root, "--extractor", "builtin"}, env.configPath)
	if err != nil {
		t.Fatalf("provision win: %v", err)
	}
	requireContains(t, out, "Provisioned win bundle")

	bundle := platform.NewLayout(root, platform.Windows).Bundle()
	if missing := bundle.Missing(); len(missing) != 0 {
		t.Fatalf("bundle missing %v", missing)
	}
	if _, err := os.Stat(filepath.Join(root, "ffmpegwin.zip")); !os.IsNotExist(err) {
		t.Fatalf("expected archive removed, stat err=%v", err)
	}
	if got := testsupport.ListDir(t, bundle.Dir); strings.Join(got, ",") != "ffmpeg.exe,ffprobe.exe" {
		t.Fatalf("unexpected bundle contents %v", got)
	}
}

func TestProvisionCommandUsesConfiguredRoot(t *testing.T) {
	env := setupCLITestEnv(t)
	layout := platform.NewLayout(env.cfg.Paths.FFmpegRoot, platform.Linux)
	testsupport.WriteZip(t, layout.ArchivePath(), map[string]string{
		"ffmpeg":  "engine",
		"ffprobe": "probe",
	})

	if _, _, err := runCLI(t, []string{"provision", "linux", "--extractor", "builtin"}, env.configPath); err != nil {
		t.Fatalf("provision linux: %v", err)
	}
	if !layout.Bundle().Valid() {
		t.Fatalf("expected bundle under configured root %s", env.cfg.Paths.FFmpegRoot)
	}
	if got := testsupport.ListDir(t, env.cfg.Paths.FFmpegRoot); len(got) != 1 || got[0] != "ffmpeglinux" {
		t.Fatalf("expected only the bundle in the ffmpeg root, got %v", got)
	}
	if _, err := os.Stat(env.cfg.ProvisionLockPath()); err != nil {
		t.Fatalf("expected provisioning lock in state dir: %v", err)
	}
}

func TestProvisionCommandFailsWhenBinariesMissing(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"provision", "mac"}, env.configPath)
	if err == nil {
		t.Fatal("expected verification failure without archive or binaries")
	}
	var verr *provision.VerificationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *provision.VerificationError, got %T: %v", err, err)
	}
	if len(verr.Missing) != 2 {
		t.Fatalf("expected both binaries missing, got %v", verr.Missing)
	}
}

func TestCheckCommandReportsBundle(t *testing.T) {
	env := setupCLITestEnv(t)
	bundle := platform.NewLayout(env.cfg.Paths.FFmpegRoot, platform.Linux).Bundle()
	testsupport.WriteFile(t, bundle.FFmpeg, "engine", 0o755)

	out, _, err := runCLI(t, []string{"check", "linux"}, env.configPath)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	requireContains(t, out, "Bundle (linux)")
	requireContains(t, out, bundle.FFmpeg)
	requireContains(t, out, "FFmpeg resolution")
	requireContains(t, out, "bundle")
	requireContains(t, out, "Bundle incomplete")

	if _, _, err := runCLI(t, []string{"check", "amiga"}, env.configPath); err == nil {
		t.Fatal("expected error for unknown platform")
	}
}

func TestHistoryCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history empty: %v", err)
	}
	requireContains(t, out, "No launches recorded")

	store := testsupport.MustOpenHistory(t, env.cfg)
	ctx := context.Background()
	started := time.Now().Add(-time.Minute)
	if err := store.RecordLaunch(ctx, "0f1e2d3c-aaaa-bbbb-cccc-ddddeeeeffff", 4242, "node server.js", 0, started); err != nil {
		t.Fatalf("RecordLaunch: %v", err)
	}
	if err := store.RecordExit(ctx, "0f1e2d3c-aaaa-bbbb-cccc-ddddeeeeffff", 1, started.Add(30*time.Second)); err != nil {
		t.Fatalf("RecordExit: %v", err)
	}

	out, _, err = runCLI(t, []string{"history", "--limit", "5"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "0f1e2d3c")
	requireContains(t, out, "4242")
	requireContains(t, out, "failure")
	requireContains(t, out, "Totals: 0 clean, 1 failure")

	if _, _, err := runCLI(t, []string{"history", "--limit", "0"}, env.configPath); err == nil {
		t.Fatal("expected error for non-positive limit")
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.cfg.Transcoder.EntryPoint)

	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected refusal to overwrite existing config")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestLogLevelFlagOverridesConfig(t *testing.T) {
	env := setupCLITestEnv(t)

	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"--config", env.configPath, "--log-level", "debug", "config", "validate"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	configFlag := env.configPath
	logLevel := "warn"
	ctx := newCommandContext(&configFlag, &logLevel)
	cfg, err := ctx.ensureConfig()
	if err != nil {
		t.Fatalf("ensureConfig: %v", err)
	}
	if cfg.Logging.Level != "warn" {
		t.Fatalf("expected log level override, got %q", cfg.Logging.Level)
	}
}

func TestRunCommandRefusesSecondInstance(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses POSIX shell entry point")
	}
	env := setupCLITestEnv(t, testsupport.WithEntryPointScript("sleep 30"), testsupport.WithPort(3999))

	h, err := host.New(env.cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("host.New: %v", err)
	}
	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("host.Start: %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })

	_, _, err = runCLI(t, []string{"run"}, env.configPath)
	if !errors.Is(err, host.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
}
