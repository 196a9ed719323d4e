// Package scheduler runs periodic maintenance: reseeding the anomaly
// population from stored snapshots and refreshing gauges.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/liamashdown/tokengate/internal/gatekeeper"
	"github.com/liamashdown/tokengate/internal/metrics"
	"github.com/liamashdown/tokengate/internal/risk"
	"github.com/liamashdown/tokengate/internal/storage"
)

const jobTimeout = time.Minute

// Store is what the maintenance jobs read.
type Store interface {
	RecentSnapshots(ctx context.Context, limit int) ([]storage.AssetSnapshot, error)
	CountBlacklist(ctx context.Context) (int64, error)
}

// Scheduler owns the cron runner
type Scheduler struct {
	cron     *cron.Cron
	store    Store
	detector *risk.AnomalyDetector
	window   int
	log      *logrus.Logger
}

// New creates a scheduler. window is the number of snapshots used to
// reseed the anomaly population.
func New(store Store, detector *risk.AnomalyDetector, window int, log *logrus.Logger) *Scheduler {
	c := cron.New(cron.WithChain(
		cron.Recover(cron.PrintfLogger(log)),
		cron.SkipIfStillRunning(cron.PrintfLogger(log)),
	))
	return &Scheduler{
		cron:     c,
		store:    store,
		detector: detector,
		window:   window,
		log:      log,
	}
}

// Start registers both jobs, runs each once, and starts the runner.
func (s *Scheduler) Start(reseedSchedule, gaugeSchedule string) error {
	if _, err := s.cron.AddFunc(reseedSchedule, s.job("reseed_anomaly", s.ReseedAnomaly)); err != nil {
		return fmt.Errorf("schedule reseed %q: %w", reseedSchedule, err)
	}
	if _, err := s.cron.AddFunc(gaugeSchedule, s.job("refresh_gauges", s.RefreshGauges)); err != nil {
		return fmt.Errorf("schedule gauges %q: %w", gaugeSchedule, err)
	}

	s.job("reseed_anomaly", s.ReseedAnomaly)()
	s.job("refresh_gauges", s.RefreshGauges)()

	s.cron.Start()
	s.log.WithFields(logrus.Fields{
		"reseed": reseedSchedule,
		"gauges": gaugeSchedule,
	}).Info("Scheduler started")
	return nil
}

// Stop halts the runner and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) job(name string, fn func(ctx context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		start := time.Now()
		if err := fn(ctx); err != nil {
			s.log.WithError(err).WithField("job", name).Error("Scheduled job failed")
			return
		}
		s.log.WithFields(logrus.Fields{
			"job":         name,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Debug("Scheduled job complete")
	}
}

// ReseedAnomaly replaces the anomaly population with the most recent stored
// snapshots. Snapshots that fail to decode are skipped.
func (s *Scheduler) ReseedAnomaly(ctx context.Context) error {
	snaps, err := s.store.RecentSnapshots(ctx, s.window)
	if err != nil {
		return fmt.Errorf("load snapshots: %w", err)
	}

	history := make([]risk.MarketData, 0, len(snaps))
	for _, snap := range snaps {
		m, err := gatekeeper.SnapshotMarket(snap)
		if err != nil {
			s.log.WithError(err).WithField("address", snap.Address).Warn("Skipping undecodable snapshot")
			continue
		}
		history = append(history, m)
	}

	s.detector.Seed(history)
	metrics.AnomalyPopulation.Set(float64(s.detector.Len()))
	s.log.WithField("population", s.detector.Len()).Info("Anomaly population reseeded")
	return nil
}

// RefreshGauges updates gauges that are backed by the store.
func (s *Scheduler) RefreshGauges(ctx context.Context) error {
	n, err := s.store.CountBlacklist(ctx)
	if err != nil {
		return fmt.Errorf("count blacklist: %w", err)
	}
	metrics.BlacklistSize.Set(float64(n))
	metrics.AnomalyPopulation.Set(float64(s.detector.Len()))
	return nil
}
