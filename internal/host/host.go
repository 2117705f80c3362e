package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"transcodehost/internal/config"
	"transcodehost/internal/history"
	"transcodehost/internal/logging"
	"transcodehost/internal/metrics"
	"transcodehost/internal/preflight"
	"transcodehost/internal/supervisor"
)

// ErrAlreadyRunning reports that another host holds the instance lock.
var ErrAlreadyRunning = errors.New("another transcodehost instance is already running")

const shutdownTimeout = 5 * time.Second

// Option customises a Host.
type Option func(*Host)

// WithSupervisorOptions adjusts the supervisor options derived from config.
func WithSupervisorOptions(fn func(*supervisor.Options)) Option {
	return func(h *Host) {
		if fn != nil {
			h.tweak = fn
		}
	}
}

// Host owns the supervisor and its supporting services.
type Host struct {
	cfg     *config.Config
	logger  *slog.Logger
	sup     *supervisor.Supervisor
	store   *history.Store
	rec     *history.Recorder
	metrics *metrics.Server
	tweak   func(*supervisor.Options)

	lockPath string
	lock     *flock.Flock

	mu       sync.Mutex
	started  bool
	running  atomic.Bool
	cancel   context.CancelFunc
	loopDone chan struct{}
}

// Status represents host runtime information.
type Status struct {
	Running      bool
	Supervisor   supervisor.Status
	LockFilePath string
	HistoryPath  string
	MetricsAddr  string
}

// New constructs a host with initialized dependencies. A history database
// that cannot be opened is logged and skipped.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Host, error) {
	if cfg == nil {
		return nil, errors.New("host requires config")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	h := &Host{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "host"),
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	for _, opt := range opts {
		opt(h)
	}

	observers := supervisor.Observers{metrics.NewObserver()}
	store, reset, err := history.OpenOrReset(cfg.HistoryPath())
	if reset {
		h.logger.Warn("launch history schema changed; previous history discarded",
			logging.String(logging.FieldEventType, "history_reset"),
			logging.String("path", cfg.HistoryPath()),
		)
	}
	if err != nil {
		h.logger.Warn("launch history unavailable",
			logging.String("path", cfg.HistoryPath()),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "launches will not be recorded"),
		)
	} else {
		h.store = store
		h.rec = history.NewRecorder(store, logger)
		observers = append(observers, h.rec)
	}

	supOpts := supervisor.OptionsFromConfig(cfg)
	if h.tweak != nil {
		h.tweak(&supOpts)
	}
	sup, err := supervisor.New(supOpts, supervisor.WithLogger(logger), supervisor.WithObserver(observers))
	if err != nil {
		_ = h.closeStore()
		return nil, fmt.Errorf("build supervisor: %w", err)
	}
	h.sup = sup

	if cfg.Metrics.Enabled {
		h.metrics = metrics.NewServer(cfg.Metrics.Bind, sup.Status, logger)
	}
	return h, nil
}

// Start acquires the instance lock, runs preflight checks, starts the
// metrics endpoint and the supervisor loop, and requests the first launch.
func (h *Host) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running.Load() {
		return errors.New("host already running")
	}
	if h.started {
		return errors.New("host cannot be restarted; construct a new one")
	}

	ok, err := h.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}

	h.logPreflight(ctx)

	if h.metrics != nil {
		if err := h.metrics.Start(); err != nil {
			_ = h.lock.Unlock()
			return fmt.Errorf("start metrics: %w", err)
		}
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.loopDone = make(chan struct{})
	go func() {
		defer close(h.loopDone)
		if err := h.sup.Run(loopCtx); err != nil {
			h.logger.Error("supervisor loop failed", logging.Error(err))
		}
	}()
	h.sup.EnsureRunning()

	h.started = true
	h.running.Store(true)
	h.logger.Info("transcodehost started",
		logging.String(logging.FieldEventType, "host_started"),
		logging.String("lock", h.lockPath),
		logging.Int("port", h.cfg.Transcoder.Port),
	)
	return nil
}

// Run starts the host and blocks until ctx is cancelled, then stops it.
func (h *Host) Run(ctx context.Context) error {
	if err := h.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	h.Stop()
	return nil
}

// Stop suppresses restarts, terminates the transcoder, stops the metrics
// endpoint and releases the instance lock.
func (h *Host) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.running.Load() {
		return
	}

	h.sup.Shutdown()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
	if h.loopDone != nil {
		<-h.loopDone
		h.loopDone = nil
	}

	if h.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := h.metrics.Shutdown(ctx); err != nil {
			h.logger.Warn("failed to stop metrics endpoint", logging.Error(err))
		}
		cancel()
	}

	if err := h.lock.Unlock(); err != nil {
		h.logger.Warn("failed to release host lock", logging.Error(err))
	}
	h.running.Store(false)
	h.logger.Info("transcodehost stopped", logging.String(logging.FieldEventType, "host_stopped"))
}

// Close releases resources held by the host.
func (h *Host) Close() error {
	h.Stop()
	return h.closeStore()
}

func (h *Host) closeStore() error {
	if h.rec != nil {
		h.rec.Close()
		h.rec = nil
	}
	if h.store == nil {
		return nil
	}
	err := h.store.Close()
	h.store = nil
	return err
}

// Status returns the current host status.
func (h *Host) Status() Status {
	status := Status{
		Running:      h.running.Load(),
		Supervisor:   h.sup.Status(),
		LockFilePath: h.lockPath,
		HistoryPath:  h.cfg.HistoryPath(),
	}
	if h.metrics != nil {
		status.MetricsAddr = h.metrics.Addr()
	}
	return status
}

func (h *Host) logPreflight(ctx context.Context) {
	for _, result := range preflight.RunAll(ctx, h.cfg) {
		if result.Passed {
			h.logger.Info("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
			)
			continue
		}
		h.logger.Warn("preflight check failed",
			logging.String(logging.FieldEventType, "preflight_failed"),
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
		)
	}
}
