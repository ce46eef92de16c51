package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"smart-parking/internal/audit"
	"smart-parking/internal/logging"
	"smart-parking/internal/parking"
)

// StatsSource is the part of the ledger the summary needs.
type StatsSource interface {
	Stats() parking.Stats
}

// Scheduler periodically writes an occupancy summary to the audit sink.
type Scheduler struct {
	cron   *cron.Cron
	spec   string
	ledger StatsSource
	sink   audit.Sink
}

// New builds a scheduler for a standard five-field cron spec or a
// descriptor such as @hourly.
func New(spec string, ledger StatsSource, sink audit.Sink) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		spec:   spec,
		ledger: ledger,
		sink:   sink,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.runSummary); err != nil {
		return fmt.Errorf("schedule occupancy summary %q: %w", s.spec, err)
	}

	log := logging.Component("scheduler")
	log.Info().Str("schedule", s.spec).Msg("starting scheduler")
	s.cron.Start()
	return nil
}

// Stop waits for a running summary to finish.
func (s *Scheduler) Stop() {
	log := logging.Component("scheduler")
	log.Info().Msg("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runSummary() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.RecordSummary(ctx); err != nil {
		logging.Error(ctx).Err(err).Msg("failed to record occupancy summary")
	}
}

// RecordSummary sends one SUMMARY event with the current counters.
func (s *Scheduler) RecordSummary(ctx context.Context) error {
	stats := s.ledger.Stats()

	err := s.sink.Record(ctx, audit.Event{
		Action:   audit.ActionSummary,
		Active:   stats.Active,
		Capacity: stats.Capacity,
		Visits:   stats.Total,
		Revenue:  stats.Revenue,
		At:       time.Now(),
	})
	if err != nil {
		return fmt.Errorf("record summary: %w", err)
	}

	logging.Info(ctx).
		Int("active", stats.Active).
		Int("capacity", stats.Capacity).
		Int("visits", stats.Total).
		Float64("revenue", stats.Revenue).
		Msg("occupancy summary recorded")
	return nil
}
