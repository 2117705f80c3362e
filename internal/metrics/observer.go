package metrics

import (
	"time"

	"transcodehost/internal/supervisor"
)

// supervisorObserver implements supervisor.Observer using the Prometheus
// metrics declared in this package.
type supervisorObserver struct{}

// NewObserver creates an observer that records supervisor lifecycle events
// into the collectors declared in metrics.go.
func NewObserver() supervisor.Observer {
	return &supervisorObserver{}
}

func (o *supervisorObserver) OnLaunch(supervisor.ProcessHandle) {
	LaunchesTotal.Inc()
	ChildRunning.Set(1)
}

func (o *supervisorObserver) OnExit(handle supervisor.ProcessHandle, code int) {
	outcome := "clean"
	if code != 0 {
		outcome = "failure"
	}
	ExitsTotal.WithLabelValues(outcome).Inc()
	ChildRunning.Set(0)
	if !handle.StartedAt.IsZero() {
		ChildUptimeSeconds.Observe(time.Since(handle.StartedAt).Seconds())
	}
}

func (o *supervisorObserver) OnRestartScheduled(time.Duration) {
	RestartsScheduledTotal.Inc()
}

func (o *supervisorObserver) OnSpawnFailure(supervisor.ProcessHandle, error) {
	SpawnFailuresTotal.Inc()
}
