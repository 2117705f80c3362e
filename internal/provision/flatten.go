package provision

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"transcodehost/internal/fileutil"
)

// Flatten removes one level of wrapper nesting from dir. When dir holds
// exactly one entry and that entry is a directory, its contents are moved
// up into dir and the wrapper is removed. It reports whether anything moved.
// Any other shape is left untouched, so a second call is a no-op.
func Flatten(dir string) (bool, error) {
	nested, ok, err := singleNestedDir(dir)
	if err != nil || !ok {
		return false, err
	}

	// The wrapper is renamed first so an inner entry sharing its name
	// (ffmpegwin/ffmpegwin/...) cannot collide on the way up.
	staging := filepath.Join(dir, ".flatten-"+uuid.NewString())
	if err := os.Rename(nested, staging); err != nil {
		return false, fmt.Errorf("stage nested directory %s: %w", nested, err)
	}
	if err := fileutil.MoveContents(staging, dir); err != nil {
		return false, fmt.Errorf("flatten %s: %w", nested, err)
	}
	if err := os.Remove(staging); err != nil {
		return false, fmt.Errorf("remove nested directory %s: %w", nested, err)
	}
	return true, nil
}

// singleNestedDir returns the path of dir's only entry when it is a directory.
func singleNestedDir(dir string) (string, bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", dir, err)
	}
	if len(entries) != 1 || !entries[0].IsDir() {
		return "", false, nil
	}
	return filepath.Join(dir, entries[0].Name()), true, nil
}
