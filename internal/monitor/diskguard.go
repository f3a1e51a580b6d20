package monitor

import (
	"os"

	"golang.org/x/sys/unix"
)

// freeGB returns the free disk space at path in gigabytes. A missing directory
// is created first so a fresh output dir does not read as exhausted.
func freeGB(path string) (float64, error) {
	if path == "" {
		path = "."
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return 0, err
	}
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	free := float64(st.Bavail) * float64(st.Bsize)
	return free / (1 << 30), nil
}
