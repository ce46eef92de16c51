package parking

import (
	"context"
	"errors"
	"sync"
	"time"

	"smart-parking/internal/audit"
	"smart-parking/internal/logging"
)

// auditTimeout bounds a single sink write once the caller's context is
// detached.
const auditTimeout = 5 * time.Second

var (
	ErrAtCapacity      = errors.New("parking lot full")
	ErrAlreadyParked   = errors.New("vehicle already parked")
	ErrNotFound        = errors.New("vehicle not found")
	ErrInvalidCapacity = errors.New("capacity must be greater than 0")
)

// Ledger is the append-only history of admissions to a fixed-capacity lot.
// Records are never removed; a release stamps the exit time. It is safe for
// concurrent use.
type Ledger struct {
	mu       sync.RWMutex
	capacity int
	records  []*Vehicle
	// parked maps a plate to the index of its open record.
	parked  map[string]int
	revenue float64

	now  func() time.Time
	sink audit.Sink
	// emitMu is taken before mu is released so events reach the sink in
	// ledger order.
	emitMu sync.Mutex
}

type Option func(*Ledger)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// WithAuditSink sends PARK and EXIT events to sink.
func WithAuditSink(sink audit.Sink) Option {
	return func(l *Ledger) {
		l.sink = sink
	}
}

func NewLedger(capacity int, opts ...Option) (*Ledger, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}

	l := &Ledger{
		capacity: capacity,
		parked:   make(map[string]int),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Receipt describes a completed release.
type Receipt struct {
	Vehicle  Vehicle
	Fee      float64
	Duration time.Duration
}

type CategoryCounts struct {
	Cars   int
	Bikes  int
	Trucks int
	Other  int
}

// Snapshot is a point-in-time copy of the ledger. Occupied and Available
// count currently parked vehicles; Total counts every admission so far.
type Snapshot struct {
	Capacity  int
	Occupied  int
	Available int
	Total     int
	Active    int
	Revenue   float64
	Counts    CategoryCounts
	Vehicles  []Vehicle
}

type Stats struct {
	Capacity int
	Active   int
	Total    int
	Revenue  float64
}

func (l *Ledger) Capacity() int {
	return l.capacity
}

// Admit records a new parked vehicle and returns its 1-based slot in the
// history.
func (l *Ledger) Admit(ctx context.Context, plate, owner string, category Category) (int, error) {
	l.mu.Lock()
	if len(l.parked) >= l.capacity {
		l.mu.Unlock()
		return 0, ErrAtCapacity
	}
	if _, ok := l.parked[plate]; ok {
		l.mu.Unlock()
		return 0, ErrAlreadyParked
	}

	slot := len(l.records) + 1
	vehicle := NewVehicle(slot, plate, owner, category, l.now())
	l.records = append(l.records, vehicle)
	l.parked[plate] = slot - 1
	event := vehicleEvent(audit.ActionPark, *vehicle, 0, vehicle.EntryTime)
	l.emitMu.Lock()
	l.mu.Unlock()

	l.emit(ctx, event)
	l.emitMu.Unlock()
	return slot, nil
}

// Release closes the open record for plate and bills it.
func (l *Ledger) Release(ctx context.Context, plate string) (Receipt, error) {
	l.mu.Lock()
	idx, ok := l.parked[plate]
	if !ok {
		l.mu.Unlock()
		return Receipt{}, ErrNotFound
	}

	vehicle := l.records[idx]
	exit := l.now()
	if exit.Before(vehicle.EntryTime) {
		exit = vehicle.EntryTime
	}
	vehicle.ExitTime = exit
	delete(l.parked, plate)

	duration := vehicle.Duration(exit)
	fee := FeeFor(vehicle.Category, duration)
	l.revenue += fee

	receipt := Receipt{Vehicle: *vehicle, Fee: fee, Duration: duration}
	event := vehicleEvent(audit.ActionExit, *vehicle, fee, exit)
	l.emitMu.Lock()
	l.mu.Unlock()

	l.emit(ctx, event)
	l.emitMu.Unlock()
	return receipt, nil
}

// QuoteFee returns what Release would bill for plate right now.
func (l *Ledger) QuoteFee(plate string) (float64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	idx, ok := l.parked[plate]
	if !ok {
		return 0, ErrNotFound
	}
	vehicle := l.records[idx]
	return FeeFor(vehicle.Category, vehicle.Duration(l.now())), nil
}

// Find returns the parked record for plate.
func (l *Ledger) Find(plate string) (Vehicle, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	idx, ok := l.parked[plate]
	if !ok {
		return Vehicle{}, ErrNotFound
	}
	return *l.records[idx], nil
}

func (l *Ledger) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	snap := Snapshot{
		Capacity: l.capacity,
		Total:    len(l.records),
		Active:   len(l.parked),
		Revenue:  l.revenue,
		Vehicles: make([]Vehicle, 0, len(l.records)),
	}
	snap.Occupied = snap.Active
	snap.Available = l.capacity - snap.Active

	for _, v := range l.records {
		switch v.Category {
		case Car:
			snap.Counts.Cars++
		case Bike:
			snap.Counts.Bikes++
		case Truck:
			snap.Counts.Trucks++
		default:
			snap.Counts.Other++
		}
		snap.Vehicles = append(snap.Vehicles, *v)
	}

	return snap
}

func (l *Ledger) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return Stats{
		Capacity: l.capacity,
		Active:   len(l.parked),
		Total:    len(l.records),
		Revenue:  l.revenue,
	}
}

// emit writes event on a context detached from the caller, since the
// mutation it describes has already happened.
func (l *Ledger) emit(ctx context.Context, event audit.Event) {
	if l.sink == nil {
		return
	}
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()

	if err := l.sink.Record(recordCtx, event); err != nil {
		logging.Warn(ctx).
			Err(err).
			Str("action", string(event.Action)).
			Str("plate", event.Plate).
			Msg("audit sink failed")
	}
}

func vehicleEvent(action audit.Action, v Vehicle, fee float64, at time.Time) audit.Event {
	return audit.Event{
		Action:   action,
		Category: string(v.Category),
		Plate:    v.Plate,
		Owner:    v.Owner,
		Slot:     v.Slot,
		Entry:    v.EntryTime,
		Exit:     v.ExitTime,
		Fee:      fee,
		At:       at,
	}
}
