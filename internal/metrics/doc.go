// Package metrics provides Prometheus instrumentation for the transcoder
// supervisor and the HTTP endpoint that exposes it.
//
// All metrics are prefixed with "transcodehost_" and registered with the
// default registry through promauto:
//   - LaunchesTotal: Counter of child launches
//   - ExitsTotal: Counter of child exits by outcome (clean/failure)
//   - RestartsScheduledTotal: Counter of scheduled restarts
//   - SpawnFailuresTotal: Counter of launches that failed to start
//   - ChildRunning: Gauge that is 1 while a child is live
//
// NewObserver adapts these collectors to supervisor.Observer. Server
// mounts GET /metrics (promhttp) and GET /healthz (supervisor status as
// JSON) on a gorilla/mux router.
package metrics
