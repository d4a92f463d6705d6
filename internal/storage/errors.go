package storage

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"time"
)

// ErrTableNotFound is wrapped by engines whose count of a missing table or
// collection would otherwise succeed with zero.
var ErrTableNotFound = errors.New("table not found")

// ConnectionError reports a failure to establish or verify a connection to
// an engine. It is the only error class New retries.
type ConnectionError struct {
	Engine string
	DSN    string // redacted
	Err    error
}

func (e *ConnectionError) Error() string {
	if e.DSN == "" {
		return fmt.Sprintf("connect %s: %v", e.Engine, e.Err)
	}
	return fmt.Sprintf("connect %s (%s): %v", e.Engine, e.DSN, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Connection wraps err as a ConnectionError with a redacted DSN.
func Connection(engine, dsn string, err error) error {
	if err == nil {
		return nil
	}
	return &ConnectionError{Engine: engine, DSN: RedactDSN(dsn), Err: err}
}

// RedactDSN hides passwords in URL-style DSNs and key=value style
// connection strings.
func RedactDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	if u, err := url.Parse(dsn); err == nil && u.Scheme != "" && u.User != nil {
		if _, has := u.User.Password(); has {
			u.User = url.UserPassword(u.User.Username(), "xxxxx")
		}
		return u.String()
	}
	if i := strings.Index(dsn, "@"); i > 0 && !strings.Contains(dsn[:i], "://") {
		// user:pass@tcp(host)/db (go-sql-driver form)
		if j := strings.Index(dsn[:i], ":"); j >= 0 {
			return dsn[:j+1] + "xxxxx" + dsn[i:]
		}
	}
	parts := strings.Split(dsn, ";")
	for i, p := range parts {
		k, _, ok := strings.Cut(p, "=")
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(k)) {
		case "password", "pwd":
			parts[i] = k + "=xxxxx"
		}
	}
	return strings.Join(parts, ";")
}

// Backoff returns an exponential, capped and jittered delay for attempt
// (zero based). The result lies in [d/2, d] where d = min(initial*2^attempt, max).
func Backoff(initial time.Duration, attempt int, max time.Duration) time.Duration {
	d := initial
	if attempt > 0 {
		d = initial << attempt
		if d <= 0 {
			d = max
		}
	}
	if d > max {
		d = max
	}
	if d <= 1 {
		return d
	}
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(d-half)+1))
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
