package scan

import (
	"context"
	"time"
)

// runTicker advances the cosmetic progress of attempt gen until ctx is
// cancelled or the ceiling is reached. It never reports 100.
func (c *Controller) runTicker(ctx context.Context, gen uint64) {
	defer c.tickers.Done()

	t := time.NewTicker(c.cfg.TickInterval)
	defer t.Stop()

	progress := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}

		progress += c.cfg.TickStep
		if progress > c.cfg.TickCeiling {
			progress = c.cfg.TickCeiling
		}
		if !c.tick(gen, progress) || progress >= c.cfg.TickCeiling {
			return
		}
	}
}

// tick patches progress for attempt gen. It reports false once the attempt
// is no longer the one scanning.
func (c *Controller) tick(gen uint64, progress int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateScanning || c.attempt != gen {
		return false
	}
	if progress <= c.status.Progress {
		return true
	}

	c.status.Progress = progress
	c.status.EstimatedTime = c.cfg.estimatedTime(progress)
	c.publishLocked()
	return true
}
