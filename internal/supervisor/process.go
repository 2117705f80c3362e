package supervisor

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const maxLineBytes = 1 << 20

// child is the loop's record of a spawned process.
type child struct {
	cmd     *exec.Cmd
	pid     int
	command string
}

func newRunID() string {
	return uuid.NewString()
}

// spawn starts the child with overlay as its complete environment. Stream
// lines and the final exit are posted to the loop. Exited follows process
// exit; stream lines still buffered at that point are drained for at most
// the drain grace, since a grandchild may hold the write ends open.
func (s *Supervisor) spawn(runID string, overlay Overlay) (*child, error) {
	name, args := s.command()
	cmd := exec.Command(name, args...) //nolint:gosec
	cmd.Dir = s.workDir()
	cmd.Env = overlay.Environ()
	configureProcAttr(cmd)

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		closeAll(stdoutR, stdoutW)
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW
	if err := cmd.Start(); err != nil {
		closeAll(stdoutR, stdoutW, stderrR, stderrW)
		return nil, fmt.Errorf("start %s: %w", name, err)
	}
	// The child owns the write ends now; EOF depends only on its holders.
	closeAll(stdoutW, stderrW)

	var streams sync.WaitGroup
	streams.Add(2)
	go s.pump(stdoutR, eventOutputLine, runID, &streams)
	go s.pump(stderrR, eventErrorLine, runID, &streams)
	go func() {
		err := cmd.Wait()
		code := exitCode(err)
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			err = nil
		}
		drainStreams(&streams, s.opts.DrainGrace, stdoutR, stderrR)
		s.post(event{kind: eventExited, runID: runID, code: code, err: err})
	}()

	return &child{
		cmd:     cmd,
		pid:     cmd.Process.Pid,
		command: strings.Join(append([]string{name}, args...), " "),
	}, nil
}

// drainStreams waits up to grace for both pumps to reach EOF, then closes
// the read ends so pumps blocked on a grandchild's open pipe return.
func drainStreams(streams *sync.WaitGroup, grace time.Duration, readers ...*os.File) {
	drained := make(chan struct{})
	go func() {
		streams.Wait()
		close(drained)
	}()

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-drained:
	case <-timer.C:
	}
	closeAll(readers...)
	<-drained
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}

func (s *Supervisor) pump(r io.Reader, kind eventKind, runID string, wg *sync.WaitGroup) {
	defer wg.Done()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		s.post(event{kind: kind, runID: runID, line: line})
	}
	// Keep the pipe drained so the child never blocks on a full buffer.
	_, _ = io.Copy(io.Discard, r)
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
