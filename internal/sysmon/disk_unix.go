//go:build linux || darwin || freebsd

package sysmon

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func diskUsage(path string) (Disk, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return Disk{}, fmt.Errorf("statfs %s: %w", path, err)
	}
	bsize := uint64(st.Bsize)
	total := uint64(st.Blocks) * bsize
	free := uint64(st.Bavail) * bsize
	used := total - uint64(st.Bfree)*bsize
	return Disk{Path: path, Total: total, Used: used, Free: free}, nil
}
