package deps

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"transcodehost/internal/platform"
)

// Resolution is the outcome of one resolver: a found path or not-found.
type Resolution struct {
	Path   string
	Found  bool
	Source string
}

// NotFound is the zero resolution for a source.
func NotFound(source string) Resolution {
	return Resolution{Source: source}
}

// Resolver attempts to locate a binary.
type Resolver func() Resolution

// Chain tries resolvers in order and returns the first found result.
type Chain []Resolver

// Resolve walks the chain. When nothing is found the returned resolution has
// Found == false and callers leave any override unset.
func (c Chain) Resolve() Resolution {
	for _, resolver := range c {
		if resolver == nil {
			continue
		}
		if res := resolver(); res.Found {
			return res
		}
	}
	return Resolution{}
}

// Trace runs every resolver and reports each outcome, for status output.
func (c Chain) Trace() []Resolution {
	out := make([]Resolution, 0, len(c))
	for _, resolver := range c {
		if resolver == nil {
			continue
		}
		out = append(out, resolver())
	}
	return out
}

// Configured resolves an explicitly configured path.
func Configured(path string) Resolver {
	return func() Resolution {
		trimmed := strings.TrimSpace(path)
		if trimmed == "" {
			return NotFound("config")
		}
		if !isExecutableFile(trimmed) {
			return NotFound("config")
		}
		return Resolution{Path: trimmed, Found: true, Source: "config"}
	}
}

// Bundled resolves a binary from the provisioned layout under root for tag.
func Bundled(root string, tag platform.Tag, probe bool) Resolver {
	return func() Resolution {
		if strings.TrimSpace(root) == "" {
			return NotFound("bundle")
		}
		bundle := platform.NewLayout(root, tag).Bundle()
		path := bundle.FFmpeg
		if probe {
			path = bundle.FFprobe
		}
		if !isExecutableFile(path) {
			return NotFound("bundle")
		}
		return Resolution{Path: path, Found: true, Source: "bundle"}
	}
}

// Sidecar resolves a binary sitting next to the given executable.
func Sidecar(executable, name string) Resolver {
	return func() Resolution {
		if strings.TrimSpace(executable) == "" {
			return NotFound("sidecar")
		}
		candidate := filepath.Join(filepath.Dir(executable), executableName(name))
		if !isExecutableFile(candidate) {
			return NotFound("sidecar")
		}
		return Resolution{Path: candidate, Found: true, Source: "sidecar"}
	}
}

// SearchPath resolves name through PATH.
func SearchPath(name string) Resolver {
	return func() Resolution {
		path, err := exec.LookPath(name)
		if err != nil {
			return NotFound("path")
		}
		return Resolution{Path: path, Found: true, Source: "path"}
	}
}

// FFmpegChain is the standard lookup order for the engine binary:
// configured path, provisioned bundle, sidecar of the host executable, PATH.
func FFmpegChain(configured, root string, tag platform.Tag) Chain {
	return Chain{
		Configured(configured),
		Bundled(root, tag, false),
		Sidecar(currentExecutable(), "ffmpeg"),
		SearchPath("ffmpeg"),
	}
}

// FFprobeChain mirrors FFmpegChain for the probe binary. A configured ffmpeg
// path implies a sibling ffprobe.
func FFprobeChain(configuredFFmpeg, root string, tag platform.Tag) Chain {
	var sibling Resolver
	if trimmed := strings.TrimSpace(configuredFFmpeg); trimmed != "" {
		sibling = Sidecar(trimmed, "ffprobe")
	}
	return Chain{
		sibling,
		Bundled(root, tag, true),
		Sidecar(currentExecutable(), "ffprobe"),
		SearchPath("ffprobe"),
	}
}

func currentExecutable() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	return exe
}

func executableName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}
	return base
}

func isExecutableFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
