//go:build !windows

package files

import "os"

// renameAtomic relies on rename(2) replacing the destination in one step.
func renameAtomic(from, to string) error {
	return os.Rename(from, to)
}

func isReparsePoint(string) (bool, error) {
	return false, nil
}

// syncDir flushes the directory entry so a renamed image survives a crash.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
