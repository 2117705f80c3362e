package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Tag identifies a target platform for the binary bundle.
type Tag string

const (
	Windows Tag = "win"
	MacOS   Tag = "mac"
	Linux   Tag = "linux"
)

// Tags lists every supported tag in display order.
func Tags() []Tag {
	return []Tag{Windows, MacOS, Linux}
}

// Parse validates a user supplied tag.
func Parse(value string) (Tag, error) {
	tag := Tag(strings.ToLower(strings.TrimSpace(value)))
	switch tag {
	case Windows, MacOS, Linux:
		return tag, nil
	default:
		return "", fmt.Errorf("unknown platform %q (use win, mac or linux)", value)
	}
}

// Host returns the tag matching the running operating system.
func Host() Tag {
	return FromGOOS(runtime.GOOS)
}

// FromGOOS maps a Go GOOS value onto a platform tag.
func FromGOOS(goos string) Tag {
	switch goos {
	case "windows":
		return Windows
	case "darwin":
		return MacOS
	default:
		return Linux
	}
}

// ExeSuffix returns the executable filename suffix for the tag.
func (t Tag) ExeSuffix() string {
	if t == Windows {
		return ".exe"
	}
	return ""
}

func (t Tag) String() string {
	return string(t)
}

// Layout resolves archive and target paths for a tag under a root directory.
type Layout struct {
	Root string
	Tag  Tag
}

// NewLayout builds the layout for tag beneath root.
func NewLayout(root string, tag Tag) Layout {
	return Layout{Root: root, Tag: tag}
}

// ArchiveName is the archive file name, e.g. "ffmpegwin.zip".
func (l Layout) ArchiveName() string {
	return "ffmpeg" + string(l.Tag) + ".zip"
}

// ArchivePath is the expected location of the source archive.
func (l Layout) ArchivePath() string {
	return filepath.Join(l.Root, l.ArchiveName())
}

// TargetDir is the extraction directory for the tag.
func (l Layout) TargetDir() string {
	return filepath.Join(l.Root, "ffmpeg"+string(l.Tag))
}

// Bundle returns the expected binary bundle for the layout.
func (l Layout) Bundle() Bundle {
	dir := l.TargetDir()
	suffix := l.Tag.ExeSuffix()
	return Bundle{
		Tag:     l.Tag,
		Dir:     dir,
		FFmpeg:  filepath.Join(dir, "ffmpeg"+suffix),
		FFprobe: filepath.Join(dir, "ffprobe"+suffix),
	}
}

// Bundle is the engine/probe executable pair for one platform.
type Bundle struct {
	Tag     Tag
	Dir     string
	FFmpeg  string
	FFprobe string
}

// Paths returns the engine and probe paths in that order.
func (b Bundle) Paths() []string {
	return []string{b.FFmpeg, b.FFprobe}
}

// Missing lists bundle paths that are not existing regular files.
func (b Bundle) Missing() []string {
	var missing []string
	for _, path := range b.Paths() {
		if !isRegularFile(path) {
			missing = append(missing, path)
		}
	}
	return missing
}

// Valid reports whether both binaries are present.
func (b Bundle) Valid() bool {
	return len(b.Missing()) == 0
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}
