// Package lock serializes operations on the same engine table. A table lock
// is held in two layers: a keyed in-process slot, so goroutines of one run
// queue up, and an exclusive flock(2) on a lock file, so separate dbbench
// processes sharing the lock directory exclude each other.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/zeebo/xxh3"
)

// BusyError is returned when a lock could not be taken before the context
// or Manager timeout expired.
type BusyError struct {
	Engine string
	Table  string
	// Holder is the last holder recorded in the lock file, if any.
	Holder string
	Err    error
}

func (e *BusyError) Error() string {
	msg := fmt.Sprintf("table %s on engine %s is locked by another operation", e.Table, e.Engine)
	if e.Holder != "" {
		msg += " (" + e.Holder + ")"
	}
	return msg + ": " + e.Err.Error()
}

func (e *BusyError) Unwrap() error { return e.Err }

// Manager hands out table locks rooted at Dir.
type Manager struct {
	dir     string
	timeout time.Duration

	// identify maps an engine name to the database it points at.
	identify func(engine string) string

	mu    sync.Mutex
	slots map[uint64]chan struct{}
}

// New returns a Manager keeping lock files in dir. A positive timeout bounds
// every Acquire in addition to the caller's context.
func New(dir string, timeout time.Duration) *Manager {
	return &Manager{dir: dir, timeout: timeout, slots: map[uint64]chan struct{}{}}
}

// Identify makes locks key on what an engine name resolves to instead of the
// name itself, so two names for the same database and table exclude each
// other. f returns "" for names it does not know; those fall back to the
// name. Identities are compared as strings, so f should normalize them.
func (m *Manager) Identify(f func(engine string) string) *Manager {
	m.identify = f
	return m
}

func (m *Manager) target(engine string) string {
	if m.identify != nil {
		if id := m.identify(engine); id != "" {
			return id
		}
	}
	return engine
}

// Lock is a held table lock.
type Lock struct {
	m    *Manager
	key  uint64
	file *lockFile
	once sync.Once
}

// Key hashes an engine/table pair.
func Key(engine, table string) uint64 {
	return xxh3.HashString(engine + "\x00" + table)
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)

// Path returns the lock file for an engine/table pair.
func (m *Manager) Path(engine, table string) string {
	target := m.target(engine)
	name := unsafeChars.ReplaceAllString(strings.ToLower(target+"-"+table), "_")
	if len(name) > 64 {
		name = name[len(name)-64:]
	}
	return filepath.Join(m.dir, fmt.Sprintf("%s-%016x.lock", name, Key(target, table)))
}

// Acquire blocks until the table lock is held, ctx is done, or the Manager
// timeout expires. op names the operation for diagnostics.
func (m *Manager) Acquire(ctx context.Context, engine, table, op string) (*Lock, error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}
	key := Key(m.target(engine), table)
	slot := m.slot(key)
	busy := func(err error, holder string) error {
		return &BusyError{Engine: engine, Table: table, Holder: holder, Err: err}
	}

	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		return nil, busy(ctx.Err(), "same process")
	}

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		<-slot
		return nil, fmt.Errorf("lock dir %s: %w", m.dir, err)
	}
	path := m.Path(engine, table)
	f, err := openLockFile(ctx, path)
	if err != nil {
		<-slot
		if ctx.Err() != nil {
			return nil, busy(ctx.Err(), readHolder(path))
		}
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	f.writeHolder(fmt.Sprintf("pid=%d op=%s since=%s", os.Getpid(), op, time.Now().UTC().Format(time.RFC3339)))

	log.WithFields(log.Fields{"engine": engine, "table": table, "op": op}).Debug("table lock acquired")
	return &Lock{m: m, key: key, file: f}, nil
}

// Release drops the lock. It is safe to call more than once.
func (l *Lock) Release() error {
	var err error
	l.once.Do(func() {
		err = l.file.close()
		<-l.m.slot(l.key)
	})
	return err
}

func (m *Manager) slot(key uint64) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[key]
	if !ok {
		s = make(chan struct{}, 1)
		m.slots[key] = s
	}
	return s
}

func readHolder(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

// pollDelay grows from 20ms to 500ms while waiting for another process.
func pollDelay(attempt int) time.Duration {
	d := 20 * time.Millisecond << min(attempt, 5)
	return min(d, 500*time.Millisecond)
}

var errWouldBlock = errors.New("lock held elsewhere")
