//go:build unix

package omfile

import (
	"os"

	"golang.org/x/sys/unix"
)

// mmapFile maps a whole file read-only. The mapping stays valid after a
// concurrent rename replaces the directory entry: the old inode lives
// until the last mapping is dropped.
func mmapFile(f *os.File, size int64) ([]byte, error) {
	return unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
}

func munmapFile(data []byte) error {
	return unix.Munmap(data)
}

// advise asks the kernel to prefault a byte range. Advisory only; errors
// are ignored because a failed madvise costs nothing but latency.
func advise(data []byte) {
	if len(data) == 0 {
		return
	}
	_ = unix.Madvise(data, unix.MADV_WILLNEED)
}
