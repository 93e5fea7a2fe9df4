package popup

import (
	"context"
	"sync"
	"time"
)

const (
	DefaultPollInterval = 200 * time.Millisecond
	MinPollInterval     = 50 * time.Millisecond
	MaxPollInterval     = 5 * time.Second
)

// Poller checks a window on a fixed interval. Its ticker is released exactly
// once, whichever of closure or cancellation happens first.
type Poller struct {
	interval time.Duration
	ticker   *time.Ticker
	stopOnce sync.Once
	stops    int
}

func NewPoller(interval time.Duration) *Poller {
	return &Poller{interval: ClampInterval(interval)}
}

// Wait blocks until win reports closed or ctx ends.
func (p *Poller) Wait(ctx context.Context, win Window) error {
	if win.Closed() {
		return nil
	}
	p.ticker = time.NewTicker(p.interval)
	defer p.stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.ticker.C:
			if win.Closed() {
				return nil
			}
		}
	}
}

func (p *Poller) stop() {
	p.stopOnce.Do(func() {
		p.ticker.Stop()
		p.stops++
	})
}

// Stops returns how many times the ticker was released (0 or 1).
func (p *Poller) Stops() int {
	return p.stops
}

// WaitClosed polls win every interval until it is closed or ctx ends.
func WaitClosed(ctx context.Context, win Window, interval time.Duration) error {
	return NewPoller(interval).Wait(ctx, win)
}

func ClampInterval(d time.Duration) time.Duration {
	switch {
	case d <= 0:
		return DefaultPollInterval
	case d < MinPollInterval:
		return MinPollInterval
	case d > MaxPollInterval:
		return MaxPollInterval
	}
	return d
}
