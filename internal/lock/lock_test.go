package lock

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireSerializesSameTable(t *testing.T) {
	m := New(t.TempDir(), 0)

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l, err := m.Acquire(context.Background(), "pg", "public.people", "load")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				cur := atomic.LoadInt32(&maxInside)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			assert.NoError(t, l.Release())
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
}

func TestDifferentTablesDoNotBlock(t *testing.T) {
	m := New(t.TempDir(), time.Second)
	a, err := m.Acquire(context.Background(), "pg", "people", "load")
	require.NoError(t, err)
	defer a.Release()

	b, err := m.Acquire(context.Background(), "ch", "people", "benchmark")
	require.NoError(t, err)
	require.NoError(t, b.Release())
	require.NotEqual(t, m.Path("pg", "people"), m.Path("ch", "people"))
}

func TestAcquireTimesOutInProcess(t *testing.T) {
	m := New(t.TempDir(), 0)
	held, err := m.Acquire(context.Background(), "pg", "people", "load")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = m.Acquire(ctx, "pg", "people", "backup")
	var busy *BusyError
	require.ErrorAs(t, err, &busy)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, "people", busy.Table)

	require.NoError(t, held.Release())
	require.NoError(t, held.Release(), "second release is a no-op")

	again, err := m.Acquire(context.Background(), "pg", "people", "backup")
	require.NoError(t, err)
	require.NoError(t, again.Release())
}

func TestLockFileExcludesOtherManagers(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("flock not available")
	}
	dir := t.TempDir()
	first := New(dir, 0)
	other := New(dir, 50*time.Millisecond)

	held, err := first.Acquire(context.Background(), "pg", "people", "load")
	require.NoError(t, err)

	_, err = other.Acquire(context.Background(), "pg", "people", "benchmark")
	var busy *BusyError
	require.ErrorAs(t, err, &busy)
	assert.Contains(t, busy.Holder, "op=load")

	require.NoError(t, held.Release())
	l, err := other.Acquire(context.Background(), "pg", "people", "benchmark")
	require.NoError(t, err)
	require.NoError(t, l.Release())
}

func TestPathIsStableAndSanitized(t *testing.T) {
	m := New("/tmp/locks", 0)
	p := m.Path("PG Main", "public.people")
	assert.Equal(t, p, m.Path("PG Main", "public.people"))
	assert.Contains(t, p, "pg_main-public.people-")
	assert.NotEqual(t, Key("a", "bc"), Key("ab", "c"))
}

func TestAliasesOfOneDatabaseShareALock(t *testing.T) {
	ids := map[string]string{"pg": "postgres db1", "pg-again": "postgres db1", "other": "postgres db2"}
	m := New(t.TempDir(), 50*time.Millisecond).Identify(func(name string) string { return ids[name] })

	l, err := m.Acquire(context.Background(), "pg", "people", "load")
	require.NoError(t, err)

	_, err = m.Acquire(context.Background(), "pg-again", "people", "backup")
	var busy *BusyError
	require.ErrorAs(t, err, &busy)
	assert.Equal(t, "pg-again", busy.Engine)
	assert.Equal(t, m.Path("pg", "people"), m.Path("pg-again", "people"))

	o, err := m.Acquire(context.Background(), "other", "people", "load")
	require.NoError(t, err)
	require.NoError(t, o.Release())

	u, err := m.Acquire(context.Background(), "unknown", "people", "load")
	require.NoError(t, err, "names without an identity key on the name")
	require.NoError(t, u.Release())

	require.NoError(t, l.Release())
	l, err = m.Acquire(context.Background(), "pg-again", "people", "backup")
	require.NoError(t, err)
	require.NoError(t, l.Release())
}

func TestPollDelayCapped(t *testing.T) {
	assert.Equal(t, 20*time.Millisecond, pollDelay(0))
	assert.Equal(t, 40*time.Millisecond, pollDelay(1))
	assert.Equal(t, 500*time.Millisecond, pollDelay(50))
}
