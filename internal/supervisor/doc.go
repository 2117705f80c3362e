// Package supervisor keeps exactly one transcoder child process alive.
//
// A Supervisor owns a single event loop goroutine (Run). Stream readers,
// the process waiter, restart timers and EnsureRunning calls all post
// events onto one channel, and only the loop reads or mutates the live
// ProcessHandle. After an unplanned exit the child is relaunched after a
// fixed delay unless Shutdown has been called.
package supervisor
