package provision

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"transcodehost/internal/config"
	"transcodehost/internal/fileutil"
)

var (
	commandContext = exec.CommandContext
	lookPath       = exec.LookPath
)

// Extractor unpacks a zip archive into an existing destination directory.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, archive, dest string) error
}

// NativeExtractor shells out to the host's archive tool: PowerShell
// Expand-Archive on Windows, unzip elsewhere.
type NativeExtractor struct {
	GOOS string
}

func (e NativeExtractor) Name() string {
	return "native:" + e.tool()
}

func (e NativeExtractor) tool() string {
	if e.GOOS == "windows" {
		return "powershell"
	}
	return "unzip"
}

// Available reports whether the native tool can be found on PATH.
func (e NativeExtractor) Available() bool {
	_, err := lookPath(e.tool())
	return err == nil
}

func (e NativeExtractor) Extract(ctx context.Context, archive, dest string) error {
	var cmd *exec.Cmd
	if e.GOOS == "windows" {
		script := fmt.Sprintf("Expand-Archive -LiteralPath %s -DestinationPath %s -Force", psQuote(archive), psQuote(dest))
		cmd = commandContext(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command", script) //nolint:gosec
	} else {
		cmd = commandContext(ctx, "unzip", "-o", "-q", archive, "-d", dest) //nolint:gosec
	}
	output, err := cmd.CombinedOutput()
	if err != nil {
		detail := strings.TrimSpace(string(output))
		if detail != "" {
			return fmt.Errorf("%s: %w: %s", e.tool(), err, detail)
		}
		return fmt.Errorf("%s: %w", e.tool(), err)
	}
	return nil
}

func psQuote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

// BuiltinExtractor reads the archive with archive/zip. Entries that would
// land outside dest are rejected.
type BuiltinExtractor struct{}

func (BuiltinExtractor) Name() string {
	return "builtin"
}

func (BuiltinExtractor) Extract(ctx context.Context, archive, dest string) error {
	reader, err := zip.OpenReader(archive)
	if err != nil {
		if reader != nil {
			reader.Close()
		}
		return fmt.Errorf("open archive: %w", err)
	}
	defer reader.Close()

	root, err := filepath.Abs(dest)
	if err != nil {
		return fmt.Errorf("resolve destination: %w", err)
	}

	for _, file := range reader.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := extractEntry(file, root); err != nil {
			return err
		}
	}
	return nil
}

func extractEntry(file *zip.File, root string) error {
	target, err := containedPath(root, filepath.Join(root, filepath.FromSlash(file.Name)))
	if err != nil {
		return fmt.Errorf("entry %q: %w", file.Name, err)
	}

	mode := file.Mode()
	switch {
	case mode.IsDir():
		return os.MkdirAll(target, 0o755)
	case mode&os.ModeSymlink != 0:
		return extractSymlink(file, root, target)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	rc, err := file.Open()
	if err != nil {
		return fmt.Errorf("open entry %q: %w", file.Name, err)
	}
	defer rc.Close()

	perm := mode.Perm()
	if perm == 0 {
		perm = 0o644
	}
	if err := fileutil.WriteFileFrom(target, rc, perm); err != nil {
		return fmt.Errorf("write entry %q: %w", file.Name, err)
	}
	return nil
}

func extractSymlink(file *zip.File, root, target string) error {
	rc, err := file.Open()
	if err != nil {
		return fmt.Errorf("open entry %q: %w", file.Name, err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(io.LimitReader(rc, 4096))
	if err != nil {
		return fmt.Errorf("read link %q: %w", file.Name, err)
	}
	linkTarget := string(raw)
	resolved := linkTarget
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(filepath.Dir(target), resolved)
	}
	if _, err := containedPath(root, resolved); err != nil {
		return fmt.Errorf("link %q: %w", file.Name, err)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	_ = os.Remove(target)
	return os.Symlink(linkTarget, target)
}

func containedPath(root, candidate string) (string, error) {
	cleaned := filepath.Clean(candidate)
	rel, err := filepath.Rel(root, cleaned)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.New("path escapes destination")
	}
	return cleaned, nil
}

// SelectExtractor resolves an extractor mode from configuration. "auto"
// prefers the native tool and falls back to the builtin reader.
func SelectExtractor(mode, goos string) (Extractor, error) {
	native := NativeExtractor{GOOS: goos}
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", config.ExtractorAuto:
		if native.Available() {
			return native, nil
		}
		return BuiltinExtractor{}, nil
	case config.ExtractorNative:
		return native, nil
	case config.ExtractorBuiltin:
		return BuiltinExtractor{}, nil
	default:
		return nil, fmt.Errorf("unknown extractor %q", mode)
	}
}
