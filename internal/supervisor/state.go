package supervisor

import "time"

// State is the lifecycle state of the supervised child.
type State string

const (
	StateStopped      State = "stopped"
	StateStarting     State = "starting"
	StateRunning      State = "running"
	StateExited       State = "exited"
	StateShuttingDown State = "shutting_down"
)

// ProcessHandle identifies one launch of the child.
type ProcessHandle struct {
	RunID     string    `json:"run_id"`
	PID       int       `json:"pid"`
	Command   string    `json:"command"`
	StartedAt time.Time `json:"started_at"`
	// Restarts is the supervisor restart counter at launch time.
	Restarts int `json:"restarts"`
}

// Status is a point-in-time snapshot of the supervisor.
type Status struct {
	State        State          `json:"state"`
	Handle       *ProcessHandle `json:"handle,omitempty"`
	Restarts     int            `json:"restarts"`
	ShuttingDown bool           `json:"shutting_down"`
	LastExitCode *int           `json:"last_exit_code,omitempty"`
	LastExitAt   *time.Time     `json:"last_exit_at,omitempty"`
	LastError    string         `json:"last_error,omitempty"`
	Port         int            `json:"port"`
}
