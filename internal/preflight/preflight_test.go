package preflight

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"transcodehost/internal/platform"
	"transcodehost/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckEntryPoint(t *testing.T) {
	dir := t.TempDir()
	entry := filepath.Join(dir, "server.js")
	if err := os.WriteFile(entry, []byte("//"), 0o644); err != nil {
		t.Fatal(err)
	}

	if result := CheckEntryPoint(entry); !result.Passed {
		t.Fatalf("expected pass, got %s", result.Detail)
	}
	if result := CheckEntryPoint(filepath.Join(dir, "missing.js")); result.Passed {
		t.Fatal("expected failure for missing entry point")
	}
	if result := CheckEntryPoint(dir); result.Passed {
		t.Fatal("expected failure for directory entry point")
	}
	if result := CheckEntryPoint(""); result.Passed {
		t.Fatal("expected failure for empty entry point")
	}
}

func TestCheckPortAvailable(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port

	busy := CheckPortAvailable(context.Background(), "port", port)
	if busy.Passed {
		t.Fatal("expected busy port to fail")
	}
	if !strings.Contains(busy.Detail, "in use") {
		t.Fatalf("unexpected detail %q", busy.Detail)
	}

	listener.Close()
	if free := CheckPortAvailable(context.Background(), "port", port); !free.Passed {
		t.Fatalf("expected released port to pass: %s", free.Detail)
	}
}

func TestRunAllReportsEachCheck(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithEntryPointScript("exit 0"))
	if err := os.MkdirAll(cfg.Paths.FFmpegRoot, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}

	results := RunAll(context.Background(), cfg)
	names := make(map[string]Result, len(results))
	for _, r := range results {
		names[r.Name] = r
	}
	for _, want := range []string{"Transcoder entry point", "FFmpeg root", "State directory", "Transcoder port"} {
		r, ok := names[want]
		if !ok {
			t.Fatalf("missing check %q in %+v", want, results)
		}
		if want != "Transcoder port" && !r.Passed {
			t.Fatalf("%s failed: %s", want, r.Detail)
		}
	}
	if _, ok := names["Interpreter"]; ok {
		t.Fatal("interpreter check should be skipped when none is configured")
	}
}

func TestCheckSystemDepsPrefersBundle(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("bundle fixtures use unix executables")
	}
	cfg := testsupport.NewConfig(t)
	bundle := platform.NewLayout(cfg.Paths.FFmpegRoot, platform.Linux).Bundle()
	testsupport.WriteScript(t, bundle.FFmpeg, "exit 0")
	testsupport.WriteScript(t, bundle.FFprobe, "exit 0")

	statuses := CheckSystemDeps(cfg, platform.Linux)
	if len(statuses) != 2 {
		t.Fatalf("expected two statuses, got %d", len(statuses))
	}
	if !statuses[0].Available || statuses[0].Command != bundle.FFmpeg || statuses[0].Source != "bundle" {
		t.Fatalf("unexpected ffmpeg status %+v", statuses[0])
	}
	if !statuses[1].Available || statuses[1].Command != bundle.FFprobe {
		t.Fatalf("unexpected ffprobe status %+v", statuses[1])
	}
}
