package history

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"transcodehost/internal/logging"
	"transcodehost/internal/supervisor"
)

const (
	recordTimeout = 2 * time.Second
	recordQueue   = 64
)

type recordJob struct {
	what  string
	runID string
	write func(ctx context.Context) error
}

// Recorder writes supervisor lifecycle events to the store. Observer calls
// only enqueue; a background goroutine performs the writes so a busy
// database never stalls the supervisor loop. Failures are logged and never
// propagated.
type Recorder struct {
	supervisor.NopObserver

	store  *Store
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	jobs   chan recordJob
	done   chan struct{}
}

// NewRecorder wraps store as a supervisor observer and starts its writer.
// Call Close before closing store.
func NewRecorder(store *Store, logger *slog.Logger) *Recorder {
	r := &Recorder{
		store:  store,
		logger: logging.NewComponentLogger(logger, "history"),
		jobs:   make(chan recordJob, recordQueue),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Recorder) OnLaunch(handle supervisor.ProcessHandle) {
	r.enqueue(recordJob{what: "launch", runID: handle.RunID, write: func(ctx context.Context) error {
		return r.store.RecordLaunch(ctx, handle.RunID, handle.PID, handle.Command, handle.Restarts, handle.StartedAt)
	}})
}

func (r *Recorder) OnExit(handle supervisor.ProcessHandle, code int) {
	endedAt := time.Now()
	r.enqueue(recordJob{what: "exit", runID: handle.RunID, write: func(ctx context.Context) error {
		return r.store.RecordExit(ctx, handle.RunID, code, endedAt)
	}})
}

func (r *Recorder) OnSpawnFailure(handle supervisor.ProcessHandle, cause error) {
	at := time.Now()
	r.enqueue(recordJob{what: "spawn failure", runID: handle.RunID, write: func(ctx context.Context) error {
		return r.store.RecordSpawnFailure(ctx, handle.RunID, handle.Restarts, at, cause)
	}})
}

// Close flushes queued writes and stops the writer. Later events are dropped.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.done
		return
	}
	r.closed = true
	close(r.jobs)
	r.mu.Unlock()
	<-r.done
}

func (r *Recorder) enqueue(job recordJob) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.jobs <- job:
	default:
		r.logger.Warn("history queue full; dropping "+job.what,
			logging.String(logging.FieldEventType, "history_dropped"),
			logging.String(logging.FieldRunID, job.runID),
		)
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for job := range r.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		err := job.write(ctx)
		cancel()
		if err != nil {
			r.logger.Warn("failed to record "+job.what,
				logging.String(logging.FieldEventType, "history_write_failed"),
				logging.String(logging.FieldRunID, job.runID),
				logging.Error(err),
			)
		}
	}
}
