package ingest

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/liamashdown/tokengate/internal/gatekeeper"
	"github.com/liamashdown/tokengate/internal/metrics"
	"github.com/liamashdown/tokengate/internal/risk"
)

// Source produces raw events. Run blocks, reconnecting as needed, until ctx
// is done.
type Source interface {
	Name() string
	Run(ctx context.Context, out chan<- Event) error
}

// Checker is the gate entrypoint the loop drives.
type Checker interface {
	Check(ctx context.Context, address string, filters risk.FilterConfig, opts gatekeeper.Options) (*gatekeeper.Result, error)
}

// Loop feeds every new asset from a source through the gate on a bounded
// worker pool.
type Loop struct {
	source     Source
	checker    Checker
	filters    risk.FilterConfig
	workerPool chan struct{}
	log        *logrus.Logger

	inflight sync.Map // address -> struct{}
	wg       sync.WaitGroup
}

// NewLoop creates an ingestion loop with workers concurrent evaluations.
func NewLoop(source Source, checker Checker, filters risk.FilterConfig, workers int, log *logrus.Logger) *Loop {
	if workers <= 0 {
		workers = 1
	}
	workerPool := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		workerPool <- struct{}{}
	}
	return &Loop{
		source:     source,
		checker:    checker,
		filters:    filters,
		workerPool: workerPool,
		log:        log,
	}
}

// Run consumes events until ctx is done, then waits for in-flight
// evaluations. Evaluations are detached from ctx so a shutdown never turns
// into spurious provider failures; each outbound call has its own timeout.
func (l *Loop) Run(ctx context.Context) error {
	events := make(chan Event, 256)
	srcDone := make(chan error, 1)
	go func() {
		srcDone <- l.source.Run(ctx, events)
	}()

	l.log.WithFields(logrus.Fields{
		"source":  l.source.Name(),
		"workers": cap(l.workerPool),
	}).Info("Ingestion loop started")

	evalCtx := context.WithoutCancel(ctx)
	var srcErr error

loop:
	for {
		select {
		case <-ctx.Done():
			srcErr = <-srcDone
			break loop
		case err := <-srcDone:
			srcErr = err
			break loop
		case ev := <-events:
			l.handle(ctx, evalCtx, ev)
		}
	}

	l.wg.Wait()
	l.log.WithField("source", l.source.Name()).Info("Ingestion loop stopped")

	if srcErr != nil && !errors.Is(srcErr, context.Canceled) {
		return srcErr
	}
	return nil
}

func (l *Loop) handle(ctx, evalCtx context.Context, ev Event) {
	address, err := ExtractAddress(ev)
	if err != nil {
		metrics.StreamEvents.WithLabelValues("malformed").Inc()
		l.log.WithFields(logrus.Fields{
			"source": ev.Source,
			"error":  err,
		}).Debug("Skipping event")
		return
	}

	if _, busy := l.inflight.LoadOrStore(address, struct{}{}); busy {
		metrics.StreamEvents.WithLabelValues("duplicate").Inc()
		return
	}

	// Acquire worker
	select {
	case <-l.workerPool:
	case <-ctx.Done():
		l.inflight.Delete(address)
		return
	}
	metrics.StreamEvents.WithLabelValues("accepted").Inc()

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer func() { l.workerPool <- struct{}{} }()
		defer l.inflight.Delete(address)

		l.evaluate(evalCtx, address, ev.Chain)
	}()
}

func (l *Loop) evaluate(ctx context.Context, address string, chain Chain) {
	res, err := l.checker.Check(ctx, address, l.filters, gatekeeper.Options{Chain: chain})
	if err != nil {
		metrics.StreamEvents.WithLabelValues("error").Inc()
		l.log.WithError(err).WithField("address", address).Error("Failed to evaluate asset")
		return
	}

	if !res.Decision.Passed() {
		metrics.StreamEvents.WithLabelValues("rejected").Inc()
		return
	}
	metrics.StreamEvents.WithLabelValues("passed").Inc()
	l.log.WithFields(logrus.Fields{
		"address": address,
		"pump":    res.Decision.Signals.Pump,
		"trades":  len(res.Dispatch.TradeIDs),
	}).Info("Asset safe for trading")
}
