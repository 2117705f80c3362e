//go:build windows

package preflight

import (
	"os"
	"path/filepath"
)

// accessRWX probes writability by creating and removing a temp file.
func accessRWX(path string) error {
	f, err := os.CreateTemp(path, ".preflight-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(filepath.Clean(name))
}
