//go:build windows

package store

import "os"

func replaceFile(tmpPath, finalPath string) error {
	// Windows renames fail when the destination exists; remove first. The
	// window between remove and rename is acceptable for report files.
	if err := os.Remove(finalPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.Rename(tmpPath, finalPath)
}
