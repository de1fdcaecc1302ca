package global

import (
	"context"
	"errors"
	"fmt"
	"time"

	"braces.dev/errtrace"

	"github.com/kolkov/allocpool/internal/pool/logger"
)

// ErrBadInterval is returned by Sweeper.Run for a non-positive interval.
var ErrBadInterval = errors.New("global: sweep interval must be positive")

// Sweeper runs CleanupUnused on a fixed interval.
type Sweeper struct {
	Pool     *Pool
	Interval time.Duration
}

// Run sweeps until ctx is cancelled and returns the number of messages
// handled in total. The interval is checked before anything else, so a bad
// one is reported even when ctx is already done.
func (s *Sweeper) Run(ctx context.Context) (int, error) {
	if s.Interval <= 0 {
		return 0, errtrace.Wrap(fmt.Errorf("%w: %v", ErrBadInterval, s.Interval))
	}
	t := time.NewTicker(s.Interval)
	defer t.Stop()

	total := 0
	for {
		select {
		case <-ctx.Done():
			logger.Debug("sweeper stopped", "messages", total)
			return total, nil
		case <-t.C:
			total += s.Pool.CleanupUnused()
		}
	}
}
