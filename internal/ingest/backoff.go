package ingest

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/liamashdown/tokengate/internal/metrics"
)

// session runs one connection until it fails. healthy reports whether the
// connection delivered at least one event, which resets the backoff.
type session func(ctx context.Context) (healthy bool, err error)

// reconnectLoop runs sessions back to back with exponential backoff between
// failures. It returns nil once ctx is done.
func reconnectLoop(ctx context.Context, name string, minDelay, maxDelay time.Duration, log *logrus.Logger, run session) error {
	if minDelay <= 0 {
		minDelay = time.Second
	}
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	delay := minDelay

	for {
		healthy, err := run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if healthy {
			delay = minDelay
		}

		metrics.StreamReconnects.Inc()
		log.WithFields(logrus.Fields{
			"source": name,
			"delay":  delay.String(),
			"error":  err,
		}).Warn("Stream disconnected, reconnecting")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

// emit delivers ev unless ctx is done first.
func emit(ctx context.Context, out chan<- Event, ev Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
