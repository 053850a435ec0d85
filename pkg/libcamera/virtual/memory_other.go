//go:build !linux

package virtual

import (
	"os"

	"golang.org/x/sys/unix"
)

func newMemory(name string, size int) (int, error) {
	f, err := os.CreateTemp("", "camsrc-"+name)
	if err != nil {
		return -1, err
	}
	defer f.Close()
	_ = os.Remove(f.Name())

	if err = f.Truncate(int64(size)); err != nil {
		return -1, err
	}
	return unix.Dup(int(f.Fd()))
}
