package preflight

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"time"

	"transcodehost/internal/config"
	"transcodehost/internal/deps"
	"transcodehost/internal/platform"
)

// CheckEntryPoint verifies that the transcoder entry point is a regular file.
func CheckEntryPoint(path string) Result {
	const name = "Transcoder entry point"

	if path == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.Mode().IsRegular() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not a regular file)", path)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckInterpreter verifies that the configured interpreter resolves.
func CheckInterpreter(interpreter string) Result {
	const name = "Interpreter"

	resolved, err := exec.LookPath(interpreter)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%q not found", interpreter)}
	}
	return Result{Name: name, Passed: true, Detail: resolved}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := accessRWX(path); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckPortAvailable reports whether the transcoder port can be bound on
// the loopback interface. A busy port usually means a stray transcoder.
func CheckPortAvailable(ctx context.Context, name string, port int) Result {
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))

	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var lc net.ListenConfig
	listener, err := lc.Listen(checkCtx, "tcp", addr)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s in use (%v)", addr, err)}
	}
	_ = listener.Close()
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s free", addr)}
}

// CheckSystemDeps evaluates the engine binaries the transcoder will use
// for the given platform.
func CheckSystemDeps(cfg *config.Config, tag platform.Tag) []deps.Status {
	provisionHint := fmt.Sprintf("run `transcodehost provision %s` or set transcoder.ffmpeg_path", tag)
	statuses := []deps.Status{
		deps.CheckChain(deps.Requirement{
			Name:        "FFmpeg",
			Command:     "ffmpeg",
			Description: "Passed to the transcoder as FFMPEG_PATH",
			Hint:        provisionHint,
			Optional:    true,
		}, deps.FFmpegChain(cfg.Transcoder.FFmpegPath, cfg.Paths.FFmpegRoot, tag)),
		deps.CheckChain(deps.Requirement{
			Name:        "FFprobe",
			Command:     "ffprobe",
			Description: "Passed to the transcoder as FFPROBE_PATH",
			Hint:        provisionHint,
			Optional:    true,
		}, deps.FFprobeChain(cfg.Transcoder.FFmpegPath, cfg.Paths.FFmpegRoot, tag)),
	}
	if cfg.Transcoder.Interpreter != "" {
		statuses = append(statuses, deps.CheckBinaries([]deps.Requirement{{
			Name:        "Interpreter",
			Command:     cfg.Transcoder.Interpreter,
			Description: "Runs the transcoder entry point",
			Hint:        "install it or clear transcoder.interpreter to run entry_point directly",
		}})...)
	}
	return statuses
}
