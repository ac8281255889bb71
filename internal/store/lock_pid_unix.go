//go:build !windows

package store

import "golang.org/x/sys/unix"

// processAlive probes liveness with a null signal. EPERM still means the
// process exists, just owned by someone else.
func processAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	if err == nil {
		return true
	}
	return err == unix.EPERM
}
