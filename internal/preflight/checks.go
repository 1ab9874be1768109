package preflight

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"
)

// minDataFree is the free space the data directory needs before version and
// session files are written.
const minDataFree = 64 << 20

// CheckDirectory verifies that path is a directory the process can read,
// write and traverse, and that its filesystem has at least minFree bytes
// available. A zero minFree skips the space check.
func CheckDirectory(name, path string, minFree uint64) Result {
	if path == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return Result{Name: name, Detail: path + ": does not exist"}
	case err != nil:
		return Result{Name: name, Detail: fmt.Sprintf("%s: stat: %v", path, err)}
	case !info.IsDir():
		return Result{Name: name, Detail: path + ": not a directory"}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s: insufficient permissions: %v", path, err)}
	}

	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return Result{Name: name, Passed: minFree == 0, Detail: fmt.Sprintf("%s: writable, free space unknown: %v", path, err)}
	}
	free := st.Bavail * uint64(st.Bsize)
	if free < minFree {
		return Result{Name: name, Detail: fmt.Sprintf("%s: only %s free, need %s", path, humanize.IBytes(free), humanize.IBytes(minFree))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s: writable, %s free", path, humanize.IBytes(free))}
}
