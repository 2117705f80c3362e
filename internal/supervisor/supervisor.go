package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"transcodehost/internal/config"
	"transcodehost/internal/deps"
	"transcodehost/internal/logging"
	"transcodehost/internal/platform"
)

const (
	defaultRestartDelay = 5 * time.Second
	defaultKillGrace    = 5 * time.Second
	defaultDrainGrace   = 500 * time.Millisecond
	eventBuffer         = 64
)

var (
	// ErrEntryPointMissing means the transcoder entry point does not exist.
	// No launch is attempted and no restart is scheduled.
	ErrEntryPointMissing = errors.New("transcoder entry point missing")
	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("supervisor loop already running")
)

// Options describes the child process and restart policy.
type Options struct {
	EntryPoint   string
	Interpreter  string
	Args         []string
	Port         int
	RestartDelay time.Duration
	KillGrace    time.Duration
	// DrainGrace bounds how long buffered output is read after the child
	// exits before its pipes are closed.
	DrainGrace       time.Duration
	SupervisedEnvKey string
	StdoutMarkers    []string
	Env              map[string]string
	// FFmpeg and FFprobe resolve the optional binary overrides.
	FFmpeg  deps.Chain
	FFprobe deps.Chain
	// BaseEnv returns the inherited environment; defaults to os.Environ.
	BaseEnv func() []string
}

// OptionsFromConfig derives supervisor options from configuration, resolving
// bundled binaries for the host platform.
func OptionsFromConfig(cfg *config.Config) Options {
	tag := platform.Host()
	return Options{
		EntryPoint:       cfg.Transcoder.EntryPoint,
		Interpreter:      cfg.Transcoder.Interpreter,
		Args:             append([]string(nil), cfg.Transcoder.Args...),
		Port:             cfg.Transcoder.Port,
		RestartDelay:     cfg.RestartDelay(),
		SupervisedEnvKey: cfg.Transcoder.SupervisedEnvKey,
		StdoutMarkers:    append([]string(nil), cfg.Transcoder.StdoutMarkers...),
		Env:              cfg.Transcoder.Env,
		FFmpeg:           deps.FFmpegChain(cfg.Transcoder.FFmpegPath, cfg.Paths.FFmpegRoot, tag),
		FFprobe:          deps.FFprobeChain(cfg.Transcoder.FFmpegPath, cfg.Paths.FFmpegRoot, tag),
	}
}

// Option customises a Supervisor.
type Option func(*Supervisor)

// WithLogger sets the supervisor logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithObserver registers a lifecycle observer.
func WithObserver(observer Observer) Option {
	return func(s *Supervisor) {
		if observer != nil {
			s.observers = append(s.observers, observer)
		}
	}
}

type eventKind int

const (
	eventEnsure eventKind = iota
	eventOutputLine
	eventErrorLine
	eventExited
	eventRestart
	eventShutdown
)

type event struct {
	kind  eventKind
	runID string
	line  string
	code  int
	err   error
	gen   uint64
}

// Supervisor owns the transcoder child process.
type Supervisor struct {
	opts      Options
	logger    *slog.Logger
	observers Observers

	events   chan event
	done     chan struct{}
	started  atomic.Bool
	shutdown atomic.Bool

	// Loop-owned; never touched outside Run.
	handle   *ProcessHandle
	child    *child
	timer    *time.Timer
	timerGen uint64
	restarts int

	mu     sync.RWMutex
	status Status
}

// New validates opts and constructs a Supervisor in the stopped state.
func New(opts Options, options ...Option) (*Supervisor, error) {
	if strings.TrimSpace(opts.EntryPoint) == "" {
		return nil, errors.New("entry point required")
	}
	if opts.Port <= 0 || opts.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", opts.Port)
	}
	if opts.RestartDelay <= 0 {
		opts.RestartDelay = defaultRestartDelay
	}
	if opts.KillGrace <= 0 {
		opts.KillGrace = defaultKillGrace
	}
	if opts.DrainGrace <= 0 {
		opts.DrainGrace = defaultDrainGrace
	}
	if opts.SupervisedEnvKey == "" {
		opts.SupervisedEnvKey = "TRANSCODER_SUPERVISED"
	}
	if opts.BaseEnv == nil {
		opts.BaseEnv = os.Environ
	}

	s := &Supervisor{
		opts:   opts,
		events: make(chan event, eventBuffer),
		done:   make(chan struct{}),
		status: Status{State: StateStopped, Port: opts.Port},
	}
	for _, option := range options {
		option(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "supervisor")
	return s, nil
}

// EnsureRunning asks the loop to launch the child if none is live. It never
// blocks on the child and is safe to call from any goroutine.
func (s *Supervisor) EnsureRunning() {
	s.post(event{kind: eventEnsure})
}

// Shutdown sets the advisory shutdown flag. Future restarts are suppressed;
// a running child is left alone.
func (s *Supervisor) Shutdown() {
	if s.shutdown.Swap(true) {
		return
	}
	s.post(event{kind: eventShutdown})
}

// Status returns a snapshot of the supervisor state.
func (s *Supervisor) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.status
	if snapshot.Handle != nil {
		handle := *snapshot.Handle
		snapshot.Handle = &handle
	}
	if snapshot.LastExitCode != nil {
		code := *snapshot.LastExitCode
		snapshot.LastExitCode = &code
	}
	if snapshot.LastExitAt != nil {
		at := *snapshot.LastExitAt
		snapshot.LastExitAt = &at
	}
	snapshot.ShuttingDown = s.shutdown.Load()
	return snapshot
}

// Run drives the event loop until ctx is cancelled. Cancellation implies
// Shutdown and terminates a live child before Run returns.
func (s *Supervisor) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			s.teardown()
			return nil
		case ev := <-s.events:
			s.dispatch(ev)
		}
	}
}

func (s *Supervisor) post(ev event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

func (s *Supervisor) dispatch(ev event) {
	switch ev.kind {
	case eventEnsure:
		s.ensure(false)
	case eventRestart:
		if ev.gen != s.timerGen {
			s.logger.Debug("ignoring stale restart request")
			return
		}
		s.timer = nil
		if s.shutdown.Load() {
			s.setState(StateStopped)
			return
		}
		s.ensure(true)
	case eventOutputLine:
		s.logOutput(ev)
	case eventErrorLine:
		s.logError(ev)
	case eventExited:
		s.exited(ev)
	case eventShutdown:
		s.logger.Info("shutdown requested; restarts suppressed",
			logging.String(logging.FieldEventType, "shutdown"),
		)
		if s.handle != nil {
			s.setState(StateShuttingDown)
		} else {
			s.setState(StateStopped)
		}
	}
}

// ensure launches the child when no handle is live. restart marks launches
// triggered by the restart timer.
func (s *Supervisor) ensure(restart bool) {
	if s.handle != nil {
		return
	}
	if s.shutdown.Load() {
		s.logger.Debug("ignoring launch request during shutdown")
		return
	}
	if _, err := os.Stat(s.opts.EntryPoint); err != nil {
		s.logger.Warn("transcoder entry point not found; not launching",
			logging.String(logging.FieldEventType, "entry_point_missing"),
			logging.String("entry_point", s.opts.EntryPoint),
			logging.String(logging.FieldErrorHint, "check transcoder.entry_point in the config"),
		)
		s.updateStatus(func(st *Status) {
			st.State = StateStopped
			st.LastError = fmt.Errorf("%w: %s", ErrEntryPointMissing, s.opts.EntryPoint).Error()
		})
		return
	}
	if restart {
		s.restarts++
	}

	s.setState(StateStarting)
	overlay := s.buildOverlay()
	handle := ProcessHandle{
		RunID:    newRunID(),
		Restarts: s.restarts,
	}
	child, err := s.spawn(handle.RunID, overlay)
	if err != nil {
		s.logger.Error("failed to launch transcoder",
			logging.String(logging.FieldEventType, "spawn_failed"),
			logging.String(logging.FieldRunID, handle.RunID),
			logging.Error(err),
		)
		s.observers.OnSpawnFailure(handle, err)
		s.updateStatus(func(st *Status) {
			st.LastError = err.Error()
		})
		s.afterExit()
		return
	}

	s.cancelRestart()
	handle.PID = child.pid
	handle.Command = child.command
	handle.StartedAt = time.Now()
	s.handle = &handle
	s.child = child

	port, _ := overlay.Lookup("PORT")
	ffmpeg, _ := overlay.Lookup("FFMPEG_PATH")
	s.logger.Info("transcoder launched",
		logging.String(logging.FieldEventType, "launch"),
		logging.String(logging.FieldRunID, handle.RunID),
		logging.Int(logging.FieldPID, handle.PID),
		logging.String("port", port),
		logging.String("ffmpeg", ffmpeg),
		logging.Int("restarts", s.restarts),
	)
	s.updateStatus(func(st *Status) {
		st.State = StateRunning
		st.Handle = &handle
		st.Restarts = s.restarts
		st.LastError = ""
	})
	s.observers.OnLaunch(handle)
}

func (s *Supervisor) exited(ev event) {
	if s.handle == nil || s.handle.RunID != ev.runID {
		return
	}
	handle := *s.handle
	s.handle = nil
	s.child = nil

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "exit"),
		logging.String(logging.FieldRunID, handle.RunID),
		logging.Int(logging.FieldPID, handle.PID),
		logging.Int("exit_code", ev.code),
		logging.Duration("uptime", time.Since(handle.StartedAt)),
	}
	if ev.err != nil {
		attrs = append(attrs, logging.Error(ev.err))
	}
	s.logger.Info("transcoder exited", logging.Args(attrs...)...)

	now := time.Now()
	code := ev.code
	s.updateStatus(func(st *Status) {
		st.Handle = nil
		st.LastExitCode = &code
		st.LastExitAt = &now
	})
	s.observers.OnExit(handle, ev.code)
	s.afterExit()
}

// afterExit applies the restart policy once the handle has been cleared.
func (s *Supervisor) afterExit() {
	if s.shutdown.Load() {
		s.logger.Info("shutting down; transcoder will not be restarted",
			logging.String(logging.FieldEventType, "restart_suppressed"),
		)
		s.setState(StateStopped)
		return
	}

	s.setState(StateExited)
	delay := s.opts.RestartDelay
	s.logger.Info("scheduling transcoder restart",
		logging.String(logging.FieldEventType, "restart_scheduled"),
		logging.Duration("delay", delay),
	)
	s.cancelRestart()
	gen := s.timerGen
	s.timer = time.AfterFunc(delay, func() {
		s.post(event{kind: eventRestart, gen: gen})
	})
	s.observers.OnRestartScheduled(delay)
}

// cancelRestart disarms the pending restart timer. A restart event that
// already fired carries the old generation and is dropped by dispatch.
func (s *Supervisor) cancelRestart() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerGen++
}

func (s *Supervisor) teardown() {
	s.shutdown.Store(true)
	s.cancelRestart()
	if s.child == nil {
		s.setState(StateStopped)
		return
	}

	s.setState(StateShuttingDown)
	child := s.child
	s.logger.Info("terminating transcoder",
		logging.String(logging.FieldEventType, "terminate"),
		logging.Int(logging.FieldPID, child.pid),
	)
	if err := child.terminate(); err != nil {
		s.logger.Debug("terminate signal failed", logging.Error(err))
	}

	grace := time.NewTimer(s.opts.KillGrace)
	defer grace.Stop()
	killed := false
	for s.child != nil {
		select {
		case ev := <-s.events:
			s.dispatch(ev)
		case <-grace.C:
			if killed {
				s.logger.Warn("transcoder did not exit after kill; abandoning",
					logging.Int(logging.FieldPID, child.pid),
				)
				s.setState(StateStopped)
				return
			}
			s.logger.Warn("transcoder ignored termination; killing",
				logging.Int(logging.FieldPID, child.pid),
			)
			_ = child.kill()
			killed = true
			grace.Reset(s.opts.KillGrace)
		}
	}
}

func (s *Supervisor) buildOverlay() Overlay {
	fixed := map[string]string{
		"PORT":                  strconv.Itoa(s.opts.Port),
		s.opts.SupervisedEnvKey: "1",
	}
	if res := s.opts.FFmpeg.Resolve(); res.Found {
		fixed["FFMPEG_PATH"] = res.Path
	}
	if res := s.opts.FFprobe.Resolve(); res.Found {
		fixed["FFPROBE_PATH"] = res.Path
	}
	return NewOverlay(s.opts.BaseEnv(), s.opts.Env, fixed)
}

func (s *Supervisor) command() (string, []string) {
	if s.opts.Interpreter != "" {
		return s.opts.Interpreter, append([]string{s.opts.EntryPoint}, s.opts.Args...)
	}
	return s.opts.EntryPoint, append([]string(nil), s.opts.Args...)
}

func (s *Supervisor) workDir() string {
	return filepath.Dir(s.opts.EntryPoint)
}

func (s *Supervisor) logOutput(ev event) {
	if !s.surfaced(ev.line) {
		return
	}
	s.logger.Info(ev.line,
		logging.String(logging.FieldEventType, "child_output"),
		logging.String(logging.FieldRunID, ev.runID),
		logging.String(logging.FieldStream, "stdout"),
	)
}

func (s *Supervisor) logError(ev event) {
	s.logger.Warn(ev.line,
		logging.String(logging.FieldEventType, "child_output"),
		logging.String(logging.FieldRunID, ev.runID),
		logging.String(logging.FieldStream, "stderr"),
	)
}

func (s *Supervisor) surfaced(line string) bool {
	for _, marker := range s.opts.StdoutMarkers {
		if strings.Contains(line, marker) {
			return true
		}
	}
	return false
}

func (s *Supervisor) setState(state State) {
	s.updateStatus(func(st *Status) { st.State = state })
}

func (s *Supervisor) updateStatus(fn func(*Status)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.status)
}
