package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

var (
	factoriesMu sync.RWMutex
	factories   = map[string]Factory{}
)

// Register makes a backend available under kind. Registering the same kind
// again replaces the previous factory.
func Register(kind string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[kind] = f
}

// ListKinds returns a sorted snapshot of registered kinds.
func ListKinds() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// connectRetryDelay is the base delay before the single scripted reconnect.
var connectRetryDelay = 500 * time.Millisecond

// New opens an engine of cfg.Kind. A ConnectionError from the factory is
// retried exactly once after a jittered delay; any other error is returned
// as is.
func New(ctx context.Context, cfg Config) (Engine, error) {
	factoriesMu.RLock()
	f, ok := factories[cfg.Kind]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}

	eng, err := f(ctx, cfg)
	if err == nil {
		return eng, nil
	}
	var ce *ConnectionError
	if !errors.As(err, &ce) {
		return nil, err
	}

	delay := Backoff(connectRetryDelay, 0, 5*time.Second)
	log.WithFields(log.Fields{
		"engine": cfg.Name,
		"kind":   cfg.Kind,
		"err":    err,
		"delay":  delay,
	}).Warn("connection failed; retrying once")

	if err := SleepContext(ctx, delay); err != nil {
		return nil, ce
	}
	return f(ctx, cfg)
}
