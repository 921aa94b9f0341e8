package delta

import "syscall"

// diskStat wraps the fields of syscall.Statfs_t this package needs,
// isolating the one syscall dependency behind a narrow interface.
type diskStat struct {
	blockSize  int64
	freeBlocks uint64
}

// AvailableBytes returns the space available to an unprivileged process.
func (s diskStat) AvailableBytes() int64 {
	return s.blockSize * int64(s.freeBlocks)
}

func statfs(path string, out *diskStat) error {
	var raw syscall.Statfs_t
	if err := syscall.Statfs(path, &raw); err != nil {
		return err
	}
	out.blockSize = int64(raw.Bsize)
	out.freeBlocks = raw.Bavail
	return nil
}
