// Package audit records parking events to append-only sinks.
//
// Sinks are collaborators of the ledger: a failing sink is reported to the
// caller, which logs it and carries on. Nothing in this package blocks an
// admission or a release.
package audit

import (
	"context"
	"errors"
	"time"
)

type Action string

const (
	ActionPark    Action = "PARK"
	ActionExit    Action = "EXIT"
	ActionSummary Action = "SUMMARY"
)

// Event is a single audit record. Vehicle fields are set for PARK and EXIT,
// the occupancy fields for SUMMARY.
type Event struct {
	Action   Action
	Category string
	Plate    string
	Owner    string
	Slot     int
	Entry    time.Time
	Exit     time.Time
	Fee      float64

	Active   int
	Capacity int
	Visits   int
	Revenue  float64
	At       time.Time
}

type Sink interface {
	Record(ctx context.Context, event Event) error
}

// Nop discards every event. It stands in for a sink that failed to open.
type Nop struct{}

func (Nop) Record(context.Context, Event) error { return nil }

type multiSink []Sink

// Multi fans an event out to every sink. All sinks are attempted; the
// returned error joins the individual failures.
func Multi(sinks ...Sink) Sink {
	filtered := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

func (m multiSink) Record(ctx context.Context, event Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
