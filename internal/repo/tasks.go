package repo

import (
	"context"
	"sync"
	"time"

	"github.com/Skotchmaster/eardogger/internal/logging"
	"github.com/Skotchmaster/eardogger/internal/metric"
)

const taskTimeout = 10 * time.Second

// Tasks tracks fire-and-forget store writes (expiry bumps, last-used bumps)
// so the process can drain them at shutdown. Spawned tasks get a fresh
// context: cancelling the request that triggered one doesn't cancel it.
// Failures are logged and counted, never returned to the original caller.
type Tasks struct {
	wg sync.WaitGroup
}

func NewTasks() *Tasks {
	return &Tasks{}
}

func (t *Tasks) Go(name string, fn func(ctx context.Context) error) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			metric.BackgroundWriteFailures.WithLabelValues(name).Inc()
			logging.FromContext(ctx).Warn("background write failed", "task", name, "error", err)
		}
	}()
}

// Wait blocks until every dispatched task has finished.
func (t *Tasks) Wait() {
	t.wg.Wait()
}
