package parking

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentedLedger wraps a Ledger with spans and metrics for every
// operation.
type InstrumentedLedger struct {
	*Ledger
	telemetry *TelemetryProvider

	// Metrics
	parkOperations    metric.Int64Counter
	exitOperations    metric.Int64Counter
	occupancy         metric.Int64UpDownCounter
	operationDuration metric.Float64Histogram
	feeCharged        metric.Float64Histogram
	revenueTotal      metric.Float64Counter
	capacityGauge     metric.Int64UpDownCounter
}

func NewInstrumentedLedger(ledger *Ledger, telemetry *TelemetryProvider) (*InstrumentedLedger, error) {
	meter := telemetry.Meter()

	parkOperations, err := meter.Int64Counter("parking_operations_total",
		metric.WithDescription("Total number of park requests"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	exitOperations, err := meter.Int64Counter("exit_operations_total",
		metric.WithDescription("Total number of exit requests"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	occupancy, err := meter.Int64UpDownCounter("parking_lot_occupancy",
		metric.WithDescription("Current number of parked vehicles"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	operationDuration, err := meter.Float64Histogram("operation_duration_seconds",
		metric.WithDescription("Duration of ledger operations"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	feeCharged, err := meter.Float64Histogram("parking_fee_charged",
		metric.WithDescription("Fee billed per exit"),
		metric.WithUnit("{rupee}"))
	if err != nil {
		return nil, err
	}

	revenueTotal, err := meter.Float64Counter("parking_revenue_total",
		metric.WithDescription("Revenue billed since start"),
		metric.WithUnit("{rupee}"))
	if err != nil {
		return nil, err
	}

	capacityGauge, err := meter.Int64UpDownCounter("parking_lot_capacity",
		metric.WithDescription("Maximum number of simultaneously parked vehicles"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	il := &InstrumentedLedger{
		Ledger:            ledger,
		telemetry:         telemetry,
		parkOperations:    parkOperations,
		exitOperations:    exitOperations,
		occupancy:         occupancy,
		operationDuration: operationDuration,
		feeCharged:        feeCharged,
		revenueTotal:      revenueTotal,
		capacityGauge:     capacityGauge,
	}

	capacityGauge.Add(context.Background(), int64(ledger.Capacity()))

	return il, nil
}

func (il *InstrumentedLedger) Admit(ctx context.Context, plate, owner string, category Category) (int, error) {
	ctx, span := il.telemetry.Tracer().Start(ctx, "ledger.admit",
		trace.WithAttributes(
			attribute.String("vehicle.plate", plate),
			attribute.String("vehicle.category", string(category)),
		))
	defer span.End()

	start := time.Now()
	slot, err := il.Ledger.Admit(ctx, plate, owner, category)
	duration := time.Since(start).Seconds()

	labels := []attribute.KeyValue{
		attribute.String("operation", "admit"),
		attribute.String("vehicle_category", string(category)),
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		labels = append(labels, attribute.String("status", statusOf(err)))
	} else {
		labels = append(labels, attribute.String("status", "success"))
		span.SetAttributes(attribute.Int("ledger.slot", slot))
		span.AddEvent("vehicle_admitted", trace.WithAttributes(attribute.Int("slot", slot)))
		il.occupancy.Add(ctx, 1)
	}

	il.parkOperations.Add(ctx, 1, metric.WithAttributes(labels...))
	il.operationDuration.Record(ctx, duration, metric.WithAttributes(labels...))

	return slot, err
}

func (il *InstrumentedLedger) Release(ctx context.Context, plate string) (Receipt, error) {
	ctx, span := il.telemetry.Tracer().Start(ctx, "ledger.release",
		trace.WithAttributes(attribute.String("vehicle.plate", plate)))
	defer span.End()

	start := time.Now()
	receipt, err := il.Ledger.Release(ctx, plate)
	duration := time.Since(start).Seconds()

	labels := []attribute.KeyValue{
		attribute.String("operation", "release"),
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		labels = append(labels, attribute.String("status", statusOf(err)))
	} else {
		category := string(receipt.Vehicle.Category)
		labels = append(labels,
			attribute.String("vehicle_category", category),
			attribute.String("status", "success"),
		)
		span.SetAttributes(
			attribute.String("vehicle.category", category),
			attribute.Int("ledger.slot", receipt.Vehicle.Slot),
			attribute.Float64("parking.fee", receipt.Fee),
			attribute.Float64("parking.duration_hours", receipt.Duration.Hours()),
		)
		span.AddEvent("vehicle_released")

		il.occupancy.Add(ctx, -1)
		feeAttrs := metric.WithAttributes(attribute.String("vehicle_category", category))
		il.feeCharged.Record(ctx, receipt.Fee, feeAttrs)
		il.revenueTotal.Add(ctx, receipt.Fee, feeAttrs)
	}

	il.exitOperations.Add(ctx, 1, metric.WithAttributes(labels...))
	il.operationDuration.Record(ctx, duration, metric.WithAttributes(labels...))

	return receipt, err
}

func (il *InstrumentedLedger) QuoteFee(ctx context.Context, plate string) (float64, error) {
	ctx, span := il.telemetry.Tracer().Start(ctx, "ledger.quote_fee",
		trace.WithAttributes(attribute.String("vehicle.plate", plate)))
	defer span.End()

	start := time.Now()
	fee, err := il.Ledger.QuoteFee(plate)
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = statusOf(err)
		span.AddEvent("vehicle_not_found")
	} else {
		span.SetAttributes(attribute.Float64("parking.fee", fee))
	}

	il.operationDuration.Record(ctx, duration, metric.WithAttributes(
		attribute.String("operation", "quote_fee"),
		attribute.String("status", status),
	))

	return fee, err
}

func (il *InstrumentedLedger) Find(ctx context.Context, plate string) (Vehicle, error) {
	ctx, span := il.telemetry.Tracer().Start(ctx, "ledger.find",
		trace.WithAttributes(attribute.String("vehicle.plate", plate)))
	defer span.End()

	start := time.Now()
	vehicle, err := il.Ledger.Find(plate)
	duration := time.Since(start).Seconds()

	status := "found"
	if err != nil {
		status = statusOf(err)
		span.AddEvent("vehicle_not_found")
	} else {
		span.SetAttributes(attribute.Int("ledger.slot", vehicle.Slot))
		span.AddEvent("vehicle_found", trace.WithAttributes(attribute.Int("slot", vehicle.Slot)))
	}

	il.operationDuration.Record(ctx, duration, metric.WithAttributes(
		attribute.String("operation", "find"),
		attribute.String("status", status),
	))

	return vehicle, err
}

func (il *InstrumentedLedger) Snapshot(ctx context.Context) Snapshot {
	ctx, span := il.telemetry.Tracer().Start(ctx, "ledger.snapshot")
	defer span.End()

	start := time.Now()
	snap := il.Ledger.Snapshot()
	duration := time.Since(start).Seconds()

	span.SetAttributes(
		attribute.Int("ledger.total", snap.Total),
		attribute.Int("ledger.occupied", snap.Occupied),
		attribute.Int("ledger.capacity", snap.Capacity),
	)

	il.operationDuration.Record(ctx, duration, metric.WithAttributes(
		attribute.String("operation", "snapshot"),
		attribute.String("status", "success"),
	))

	return snap
}

func statusOf(err error) string {
	switch {
	case errors.Is(err, ErrAtCapacity):
		return "at_capacity"
	case errors.Is(err, ErrAlreadyParked):
		return "already_parked"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "failed"
	}
}
