package memstore

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// fileLock is an advisory flock on a sibling of the snapshot file.
type fileLock struct {
	f *os.File
}

// acquireLock takes a shared lock for readers and an exclusive lock for writers.
// It does not wait: a store held by another writer fails to open.
func acquireLock(filename string, shared bool) (*fileLock, error) {
	f, err := os.OpenFile(filename+".lock", os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		if shared && os.IsPermission(err) {
			// Read-only media; nothing else can write here either.
			return &fileLock{}, nil
		}
		return nil, err
	}
	how := unix.LOCK_EX
	if shared {
		how = unix.LOCK_SH
	}
	if err := unix.Flock(int(f.Fd()), how|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("locking %q: store is in use: %w", filename, err)
	}
	return &fileLock{f: f}, nil
}

func (l *fileLock) release() error {
	if l == nil || l.f == nil {
		return nil
	}
	unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	err := l.f.Close()
	l.f = nil
	return err
}
