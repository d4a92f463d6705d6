//go:build unix

package lock

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

type lockFile struct{ f *os.File }

// openLockFile opens path and polls a non-blocking exclusive flock until it
// succeeds or ctx is done.
func openLockFile(ctx context.Context, path string) (*lockFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	for attempt := 0; ; attempt++ {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return &lockFile{f: f}, nil
		}
		if !errors.Is(err, unix.EWOULDBLOCK) && !errors.Is(err, unix.EINTR) {
			_ = f.Close()
			return nil, err
		}
		t := time.NewTimer(pollDelay(attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			_ = f.Close()
			return nil, errWouldBlock
		case <-t.C:
		}
	}
}

func (l *lockFile) writeHolder(s string) {
	if err := l.f.Truncate(0); err != nil {
		return
	}
	_, _ = l.f.WriteAt([]byte(s+"\n"), 0)
}

func (l *lockFile) close() error {
	if err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN); err != nil {
		_ = l.f.Close()
		return err
	}
	return l.f.Close()
}
