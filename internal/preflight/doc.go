// Package preflight provides readiness checks for the paths and ports the
// runtime host depends on.
//
// These checks run in two contexts:
//   - The host calls RunAll before launching the transcoder and logs each
//     result. Failures are advisory; the supervisor still decides whether
//     a launch is possible.
//   - The CLI "check" command uses CheckSystemDeps to display which engine
//     binaries are available.
package preflight
