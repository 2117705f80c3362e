package supervisor

import "time"

// Observer receives lifecycle notifications from the event loop. Methods
// are called synchronously on the loop goroutine and must not block;
// implementations that do I/O hand the work to their own goroutine.
type Observer interface {
	OnLaunch(handle ProcessHandle)
	OnExit(handle ProcessHandle, code int)
	OnRestartScheduled(delay time.Duration)
	OnSpawnFailure(handle ProcessHandle, err error)
}

// NopObserver implements Observer with no-ops. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) OnLaunch(ProcessHandle)              {}
func (NopObserver) OnExit(ProcessHandle, int)           {}
func (NopObserver) OnRestartScheduled(time.Duration)    {}
func (NopObserver) OnSpawnFailure(ProcessHandle, error) {}

// Observers fans notifications out to several observers in order.
type Observers []Observer

func (o Observers) OnLaunch(handle ProcessHandle) {
	for _, obs := range o {
		obs.OnLaunch(handle)
	}
}

func (o Observers) OnExit(handle ProcessHandle, code int) {
	for _, obs := range o {
		obs.OnExit(handle, code)
	}
}

func (o Observers) OnRestartScheduled(delay time.Duration) {
	for _, obs := range o {
		obs.OnRestartScheduled(delay)
	}
}

func (o Observers) OnSpawnFailure(handle ProcessHandle, err error) {
	for _, obs := range o {
		obs.OnSpawnFailure(handle, err)
	}
}
