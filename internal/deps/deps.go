package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement names a binary the transcoder host relies on. Hint is shown
// to the operator when the binary cannot be found.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Hint        string
	Optional    bool
}

// Status reports where a dependency was found, or why it was not.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	// Source is the resolver that found the binary: config, bundle,
	// sidecar, path.
	Source string
	Detail string
}

// CheckBinaries resolves each requirement through PATH or as an absolute
// path.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := newStatus(req, cmd)
		if cmd == "" {
			status.Detail = withHint("command not configured", req.Hint)
			results = append(results, status)
			continue
		}
		resolved, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = withHint(fmt.Sprintf("binary %q not found", cmd), req.Hint)
			results = append(results, status)
			continue
		}
		status.Command = resolved
		status.Source = "path"
		status.Available = true
		results = append(results, status)
	}
	return results
}

// CheckChain reports the first hit of chain for req. When nothing resolves,
// Detail lists every source tried so the operator can see which step to fix.
func CheckChain(req Requirement, chain Chain) Status {
	status := newStatus(req, req.Command)
	trace := chain.Trace()
	tried := make([]string, 0, len(trace))
	for _, res := range trace {
		if res.Found {
			status.Command = res.Path
			status.Source = res.Source
			status.Available = true
			return status
		}
		tried = append(tried, res.Source)
	}
	status.Detail = withHint("not found via "+strings.Join(tried, ", "), req.Hint)
	return status
}

func newStatus(req Requirement, cmd string) Status {
	return Status{
		Name:        req.Name,
		Command:     cmd,
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
}

func withHint(detail, hint string) string {
	if hint = strings.TrimSpace(hint); hint == "" {
		return detail
	}
	return detail + "; " + hint
}
