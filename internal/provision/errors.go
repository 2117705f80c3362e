package provision

import (
	"errors"
	"fmt"
	"strings"

	"transcodehost/internal/platform"
)

// ErrLocked reports that another provisioning run held the root lock past
// the configured timeout.
var ErrLocked = errors.New("provisioning root is locked by another run")

// ExtractionError wraps a failed archive extraction. It is always fatal.
type ExtractionError struct {
	Archive   string
	Dir       string
	Extractor string
	Err       error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s into %s (%s): %v", e.Archive, e.Dir, e.Extractor, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// VerificationError lists every required binary that is absent after
// provisioning. NestedDir is set when the target directory still holds a
// single wrapper directory, which means the archive was nested deeper than
// the flatten pass handles.
type VerificationError struct {
	Tag       platform.Tag
	Missing   []string
	NestedDir string
}

func (e *VerificationError) Error() string {
	msg := fmt.Sprintf("ffmpeg bundle for %s is incomplete: missing %s", e.Tag, strings.Join(e.Missing, ", "))
	if e.NestedDir != "" {
		msg += fmt.Sprintf(" (archive left nested directory %s)", e.NestedDir)
	}
	return msg
}
