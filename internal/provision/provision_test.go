package provision_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"transcodehost/internal/platform"
	"transcodehost/internal/provision"
	"transcodehost/internal/testsupport"
)

func newProvisioner(root string, opts ...provision.Option) *provision.Provisioner {
	base := []provision.Option{provision.WithExtractor(provision.BuiltinExtractor{})}
	return provision.New(root, append(base, opts...)...)
}

func TestProvisionFlattensNestedArchive(t *testing.T) {
	root := filepath.Join(t.TempDir(), "ffmpeg")
	layout := platform.NewLayout(root, platform.Windows)
	testsupport.WriteZip(t, layout.ArchivePath(), map[string]string{
		"ffmpegwin/":            "",
		"ffmpegwin/ffmpeg.exe":  "engine",
		"ffmpegwin/ffprobe.exe": "probe",
	})

	bundle, err := newProvisioner(root).Provision(context.Background(), platform.Windows)
	if err != nil {
		t.Fatalf("Provision returned error: %v", err)
	}

	if bundle.FFmpeg != filepath.Join(root, "ffmpegwin", "ffmpeg.exe") {
		t.Fatalf("unexpected ffmpeg path %q", bundle.FFmpeg)
	}
	got := testsupport.ListDir(t, layout.TargetDir())
	want := []string{"ffmpeg.exe", "ffprobe.exe"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("target contents = %v, want %v", got, want)
	}
	if _, err := os.Stat(layout.ArchivePath()); !os.IsNotExist(err) {
		t.Fatalf("expected archive to be deleted, stat err = %v", err)
	}
}

func TestProvisionProducesPlatformFilenames(t *testing.T) {
	for _, tag := range platform.Tags() {
		t.Run(tag.String(), func(t *testing.T) {
			root := t.TempDir()
			layout := platform.NewLayout(root, tag)
			suffix := tag.ExeSuffix()
			testsupport.WriteZip(t, layout.ArchivePath(), map[string]string{
				"ffmpeg" + suffix:  "engine",
				"ffprobe" + suffix: "probe",
			})

			if _, err := newProvisioner(root).Provision(context.Background(), tag); err != nil {
				t.Fatalf("Provision returned error: %v", err)
			}
			got := testsupport.ListDir(t, layout.TargetDir())
			want := []string{"ffmpeg" + suffix, "ffprobe" + suffix}
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("target contents = %v, want %v", got, want)
			}
		})
	}
}

func TestProvisionMissingArchiveAcceptsExistingBinaries(t *testing.T) {
	root := t.TempDir()
	layout := platform.NewLayout(root, platform.MacOS)
	testsupport.WriteFile(t, filepath.Join(layout.TargetDir(), "ffmpeg"), "engine", 0o644)
	testsupport.WriteFile(t, filepath.Join(layout.TargetDir(), "ffprobe"), "probe", 0o644)

	bundle, err := newProvisioner(root, provision.WithGOOS("darwin")).Provision(context.Background(), platform.MacOS)
	if err != nil {
		t.Fatalf("Provision returned error: %v", err)
	}
	if runtime.GOOS != "windows" {
		info, err := os.Stat(bundle.FFmpeg)
		if err != nil {
			t.Fatalf("stat ffmpeg: %v", err)
		}
		if info.Mode().Perm()&0o111 == 0 {
			t.Fatalf("expected ffmpeg to be executable, mode %v", info.Mode())
		}
	}
}

func TestProvisionMissingArchiveAndBinariesFails(t *testing.T) {
	root := t.TempDir()
	_, err := newProvisioner(root).Provision(context.Background(), platform.Linux)

	var verr *provision.VerificationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected VerificationError, got %v", err)
	}
	if len(verr.Missing) != 2 {
		t.Fatalf("expected both binaries missing, got %v", verr.Missing)
	}
}

func TestProvisionReportsMissingEngine(t *testing.T) {
	root := t.TempDir()
	layout := platform.NewLayout(root, platform.Linux)
	testsupport.WriteZip(t, layout.ArchivePath(), map[string]string{
		"ffprobe": "probe",
	})

	_, err := newProvisioner(root).Provision(context.Background(), platform.Linux)

	var verr *provision.VerificationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected VerificationError, got %v", err)
	}
	want := []string{filepath.Join(layout.TargetDir(), "ffmpeg")}
	if !reflect.DeepEqual(verr.Missing, want) {
		t.Fatalf("missing = %v, want %v", verr.Missing, want)
	}
	if verr.NestedDir != "" {
		t.Fatalf("unexpected nested dir %q", verr.NestedDir)
	}
}

func TestProvisionDoubleNestingIsReportedNotRecursed(t *testing.T) {
	root := t.TempDir()
	layout := platform.NewLayout(root, platform.Linux)
	testsupport.WriteZip(t, layout.ArchivePath(), map[string]string{
		"outer/inner/ffmpeg":  "engine",
		"outer/inner/ffprobe": "probe",
	})

	_, err := newProvisioner(root).Provision(context.Background(), platform.Linux)

	var verr *provision.VerificationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected VerificationError, got %v", err)
	}
	if verr.NestedDir != filepath.Join(layout.TargetDir(), "inner") {
		t.Fatalf("nested dir = %q", verr.NestedDir)
	}
}

func TestProvisionRerunYieldsSameBundle(t *testing.T) {
	root := t.TempDir()
	layout := platform.NewLayout(root, platform.Linux)
	entries := map[string]string{
		"ffmpeg-7.1/ffmpeg":  "engine",
		"ffmpeg-7.1/ffprobe": "probe",
	}
	p := newProvisioner(root)

	testsupport.WriteZip(t, layout.ArchivePath(), entries)
	if _, err := p.Provision(context.Background(), platform.Linux); err != nil {
		t.Fatalf("first Provision: %v", err)
	}
	first := testsupport.ListDir(t, layout.TargetDir())

	// Leftovers from a previous run must not survive re-extraction.
	testsupport.WriteFile(t, filepath.Join(layout.TargetDir(), "stale.txt"), "old", 0o644)
	testsupport.WriteZip(t, layout.ArchivePath(), entries)
	if _, err := p.Provision(context.Background(), platform.Linux); err != nil {
		t.Fatalf("second Provision: %v", err)
	}
	second := testsupport.ListDir(t, layout.TargetDir())

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("re-run changed bundle: %v vs %v", first, second)
	}
}

type failingExtractor struct{}

func (failingExtractor) Name() string { return "failing" }

func (failingExtractor) Extract(context.Context, string, string) error {
	return errors.New("corrupt archive")
}

func TestProvisionExtractionFailureIsFatal(t *testing.T) {
	root := t.TempDir()
	layout := platform.NewLayout(root, platform.Linux)
	testsupport.WriteFile(t, layout.ArchivePath(), "not a zip", 0o644)

	_, err := provision.New(root, provision.WithExtractor(failingExtractor{})).Provision(context.Background(), platform.Linux)

	var eerr *provision.ExtractionError
	if !errors.As(err, &eerr) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
	if _, statErr := os.Stat(layout.ArchivePath()); statErr != nil {
		t.Fatalf("archive should be kept after failed extraction: %v", statErr)
	}
}

func TestProvisionSwallowsChmodFailure(t *testing.T) {
	root := t.TempDir()
	layout := platform.NewLayout(root, platform.Linux)
	testsupport.WriteZip(t, layout.ArchivePath(), map[string]string{
		"ffmpeg":  "engine",
		"ffprobe": "probe",
	})

	calls := 0
	chmod := func(string, os.FileMode) error {
		calls++
		return errors.New("read-only filesystem")
	}
	_, err := newProvisioner(root, provision.WithGOOS("linux"), provision.WithChmod(chmod)).Provision(context.Background(), platform.Linux)
	if err != nil {
		t.Fatalf("chmod failure should not fail provisioning: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected chmod on both binaries, got %d calls", calls)
	}
}

func TestProvisionSkipsChmodOnWindowsHost(t *testing.T) {
	root := t.TempDir()
	layout := platform.NewLayout(root, platform.Windows)
	testsupport.WriteZip(t, layout.ArchivePath(), map[string]string{
		"ffmpeg.exe":  "engine",
		"ffprobe.exe": "probe",
	})

	calls := 0
	chmod := func(string, os.FileMode) error {
		calls++
		return nil
	}
	if _, err := newProvisioner(root, provision.WithGOOS("windows"), provision.WithChmod(chmod)).Provision(context.Background(), platform.Windows); err != nil {
		t.Fatalf("Provision returned error: %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected no chmod calls on windows, got %d", calls)
	}
}

func TestProvisionWaitsForLock(t *testing.T) {
	root := t.TempDir()
	lockPath := filepath.Join(t.TempDir(), "state", "provision.lock")
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil || !locked {
		t.Fatalf("TryLock: locked=%v err=%v", locked, err)
	}
	defer lock.Unlock()

	_, err = newProvisioner(root,
		provision.WithLockPath(lockPath),
		provision.WithLockTimeout(300*time.Millisecond),
	).Provision(context.Background(), platform.Linux)
	if !errors.Is(err, provision.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func TestProvisionLeavesNoLockFileInRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "ffmpeg")
	layout := platform.NewLayout(root, platform.Linux)
	testsupport.WriteZip(t, layout.ArchivePath(), map[string]string{
		"ffmpeg":  "engine",
		"ffprobe": "probe",
	})

	if _, err := newProvisioner(root).Provision(context.Background(), platform.Linux); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if got := testsupport.ListDir(t, root); len(got) != 1 || got[0] != "ffmpeglinux" {
		t.Fatalf("expected only the bundle directory in root, got %v", got)
	}
	if _, err := os.Stat(provision.DefaultLockPath(root)); err != nil {
		t.Fatalf("expected default lock beside root: %v", err)
	}

	lockPath := filepath.Join(t.TempDir(), "provision.lock")
	if _, err := newProvisioner(root, provision.WithLockPath(lockPath)).Provision(context.Background(), platform.Linux); err != nil {
		t.Fatalf("Provision with lock path: %v", err)
	}
	if _, err := os.Stat(lockPath); err != nil {
		t.Fatalf("expected configured lock file: %v", err)
	}
}
