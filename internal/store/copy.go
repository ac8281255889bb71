package store

import (
	"io"
	"os"
	"path/filepath"
)

// CopyFile copies src to dst byte-for-byte, creating parent directories.
// The copy is format-agnostic on purpose: staged artifacts may be JSON keys,
// raw binary signatures, or SSZ blobs depending on the implementation's
// serialization generation.
func CopyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer func() { _ = in.Close() }()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, in)
	if err != nil {
		_ = out.Close()
		return n, err
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return n, err
	}
	return n, out.Close()
}

// FileSize returns the size of path, or ok=false when it does not exist.
func FileSize(path string) (size int64, ok bool, err error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return info.Size(), true, nil
}
