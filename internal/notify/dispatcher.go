package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Dispatcher runs each platform delivery on a bounded goroutine pool. When
// the pool is saturated the delivery is dropped and logged. NonBlocking
// platforms bypass the pool.
type Dispatcher struct {
	pooled  []Platform
	inline  []Platform
	group   errgroup.Group
	timeout time.Duration
	logger  *slog.Logger

	// mu keeps TryGo from racing with group.Wait in Close.
	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(workers int, timeout time.Duration, logger *slog.Logger, platforms ...Platform) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	d := &Dispatcher{
		timeout: timeout,
		logger:  logger,
	}
	for _, p := range platforms {
		if _, ok := p.(NonBlocking); ok {
			d.inline = append(d.inline, p)
		} else {
			d.pooled = append(d.pooled, p)
		}
	}
	d.group.SetLimit(workers)
	return d
}

func (d *Dispatcher) Notify(listID string, latestRev int64) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	for _, p := range d.inline {
		d.deliver(p, listID, latestRev)
	}

	for _, p := range d.pooled {
		p := p
		ok := d.group.TryGo(func() error {
			d.deliver(p, listID, latestRev)
			return nil
		})
		if !ok {
			d.logger.Warn("notification dropped, workers busy",
				"platform", p.Name(), "list_id", listID, "latest_rev", latestRev)
		}
	}
}

func (d *Dispatcher) deliver(p Platform, listID string, latestRev int64) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	start := time.Now()
	if err := p.Send(ctx, listID, latestRev); err != nil {
		d.logger.Error("notification failed",
			"platform", p.Name(), "list_id", listID, "latest_rev", latestRev, "error", err)
		return
	}
	d.logger.Debug("notification sent",
		"platform", p.Name(), "list_id", listID, "latest_rev", latestRev, "duration", time.Since(start))
}

// Close stops accepting notices and waits for in-flight deliveries.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	_ = d.group.Wait()
}
