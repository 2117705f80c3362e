package deps

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"transcodehost/internal/platform"
)

func writeStub(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
}

func TestCheckBinaries(t *testing.T) {
	present := filepath.Join(t.TempDir(), "present")
	writeStub(t, present)
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Empty", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Available || results[2].Detail != "command not configured" {
		t.Fatalf("unexpected empty command status: %#v", results[2])
	}
}

func TestCheckBinariesAppendsHint(t *testing.T) {
	results := CheckBinaries([]Requirement{{
		Name:    "Interpreter",
		Command: "clearly-not-present-node",
		Hint:    "clear transcoder.interpreter",
	}})
	if results[0].Available {
		t.Fatalf("expected unavailable, got %#v", results[0])
	}
	if want := `binary "clearly-not-present-node" not found; clear transcoder.interpreter`; results[0].Detail != want {
		t.Fatalf("detail = %q, want %q", results[0].Detail, want)
	}
}

func TestCheckChainReportsSource(t *testing.T) {
	found := filepath.Join(t.TempDir(), "ffmpeg")
	req := Requirement{Name: "FFmpeg", Command: "ffmpeg", Hint: "run `transcodehost provision linux`", Optional: true}

	status := CheckChain(req, Chain{
		func() Resolution { return NotFound("config") },
		func() Resolution { return Resolution{Path: found, Found: true, Source: "bundle"} },
	})
	if !status.Available || status.Command != found || status.Source != "bundle" || status.Detail != "" {
		t.Fatalf("unexpected status %#v", status)
	}

	status = CheckChain(req, Chain{
		func() Resolution { return NotFound("config") },
		func() Resolution { return NotFound("bundle") },
		func() Resolution { return NotFound("path") },
	})
	if status.Available || status.Source != "" {
		t.Fatalf("expected unresolved status, got %#v", status)
	}
	if want := "not found via config, bundle, path; run `transcodehost provision linux`"; status.Detail != want {
		t.Fatalf("detail = %q, want %q", status.Detail, want)
	}
	if !status.Optional || status.Command != "ffmpeg" {
		t.Fatalf("requirement fields not carried: %#v", status)
	}
}

func TestChainReturnsFirstFound(t *testing.T) {
	calls := 0
	chain := Chain{
		func() Resolution { calls++; return NotFound("a") },
		nil,
		func() Resolution { calls++; return Resolution{Path: "/b", Found: true, Source: "b"} },
		func() Resolution { calls++; return Resolution{Path: "/c", Found: true, Source: "c"} },
	}
	res := chain.Resolve()
	if !res.Found || res.Path != "/b" || res.Source != "b" {
		t.Fatalf("unexpected resolution: %#v", res)
	}
	if calls != 2 {
		t.Fatalf("expected chain to stop after first hit, got %d calls", calls)
	}
	if trace := chain.Trace(); len(trace) != 3 {
		t.Fatalf("expected 3 traced resolutions, got %d", len(trace))
	}
}

func TestChainNothingFound(t *testing.T) {
	res := Chain{func() Resolution { return NotFound("x") }}.Resolve()
	if res.Found || res.Path != "" {
		t.Fatalf("expected empty resolution, got %#v", res)
	}
}

func TestFFmpegChainPrefersConfiguredThenBundle(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("stub scripts require a POSIX shell")
	}
	t.Setenv("PATH", "")
	root := t.TempDir()
	bundle := platform.NewLayout(root, platform.Linux).Bundle()
	writeStub(t, bundle.FFmpeg)
	writeStub(t, bundle.FFprobe)

	res := FFmpegChain("", root, platform.Linux).Resolve()
	if !res.Found || res.Path != bundle.FFmpeg || res.Source != "bundle" {
		t.Fatalf("expected bundle resolution, got %#v", res)
	}

	configured := filepath.Join(t.TempDir(), "custom", "ffmpeg")
	writeStub(t, configured)
	writeStub(t, filepath.Join(filepath.Dir(configured), "ffprobe"))
	res = FFmpegChain(configured, root, platform.Linux).Resolve()
	if res.Path != configured || res.Source != "config" {
		t.Fatalf("expected configured resolution, got %#v", res)
	}
	probe := FFprobeChain(configured, root, platform.Linux).Resolve()
	if probe.Path != filepath.Join(filepath.Dir(configured), "ffprobe") || probe.Source != "sidecar" {
		t.Fatalf("expected sibling ffprobe, got %#v", probe)
	}
}

func TestFFmpegChainFallsBackToPath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("stub scripts require a POSIX shell")
	}
	binDir := t.TempDir()
	writeStub(t, filepath.Join(binDir, "ffmpeg"))
	t.Setenv("PATH", binDir)

	res := FFmpegChain("", filepath.Join(t.TempDir(), "empty"), platform.Linux).Resolve()
	if !res.Found || res.Source != "path" || res.Path != filepath.Join(binDir, "ffmpeg") {
		t.Fatalf("expected PATH resolution, got %#v", res)
	}
}

func TestConfiguredIgnoresNonExecutable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not meaningful on windows")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	if res := Configured(path)(); res.Found {
		t.Fatalf("expected non-executable file to be skipped, got %#v", res)
	}
}
