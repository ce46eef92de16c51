package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"smart-parking/internal/parking"
)

const usage = `Commands:
  park <plate> <Car|Bike|Truck> <owner...>
  exit <plate>
  fee <plate>
  find <plate>
  status
  help`

// Shell reads one command per line and prints the result.
type Shell struct {
	backend Backend
	scanner *bufio.Scanner
	out     io.Writer
	tracer  trace.Tracer
}

func NewShell(backend Backend, in io.Reader, out io.Writer, tracer trace.Tracer) *Shell {
	return &Shell{
		backend: backend,
		scanner: bufio.NewScanner(in),
		out:     out,
		tracer:  tracer,
	}
}

// Run processes commands until input ends or ctx is cancelled.
func (s *Shell) Run(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "shell.run")
	defer span.End()

	span.AddEvent("shell_started")

	for s.scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil
		}

		input := strings.TrimSpace(s.scanner.Text())
		if input == "" {
			continue
		}

		cmdCtx, cmdSpan := s.tracer.Start(ctx, "shell.process_command",
			trace.WithAttributes(attribute.String("command.input", input)))
		s.processCommand(cmdCtx, cmdSpan, input)
		cmdSpan.End()
	}

	span.AddEvent("shell_ended")
	return s.scanner.Err()
}

func (s *Shell) processCommand(ctx context.Context, span trace.Span, input string) {
	parts := strings.Fields(input)
	command := parts[0]
	span.SetAttributes(attribute.String("command.name", command))

	var err error
	switch command {
	case "park":
		err = s.handlePark(ctx, parts)
	case "exit":
		err = s.handleExit(ctx, parts)
	case "fee":
		err = s.handleFee(ctx, parts)
	case "find":
		err = s.handleFind(ctx, parts)
	case "status":
		err = s.handleStatus(ctx)
	case "help":
		s.println(usage)
	default:
		span.AddEvent("unknown_command")
		s.printf("Unknown command: %s\n", command)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

func (s *Shell) handlePark(ctx context.Context, parts []string) error {
	if len(parts) < 4 {
		s.println("Usage: park <plate> <Car|Bike|Truck> <owner...>")
		return nil
	}

	plate, category := parts[1], parking.Category(parts[2])
	owner := strings.Join(parts[3:], " ")
	if !category.Known() {
		s.printf("Warning: %s is not a billed category, fee will be 0\n", category)
	}

	slot, err := s.backend.Park(ctx, plate, owner, category)
	switch {
	case errors.Is(err, parking.ErrAtCapacity):
		s.println("Sorry, parking lot is full")
		return nil
	case errors.Is(err, parking.ErrAlreadyParked):
		s.printf("Vehicle %s is already parked\n", plate)
		return nil
	case err != nil:
		s.printf("Error: %s\n", err.Error())
		return err
	}

	s.printf("Allocated slot number: %d\n", slot)
	return nil
}

func (s *Shell) handleExit(ctx context.Context, parts []string) error {
	if len(parts) != 2 {
		s.println("Usage: exit <plate>")
		return nil
	}

	fee, err := s.backend.Exit(ctx, parts[1])
	if errors.Is(err, parking.ErrNotFound) {
		s.println("Not found")
		return nil
	}
	if err != nil {
		s.printf("Error: %s\n", err.Error())
		return err
	}

	s.printf("Vehicle %s exited. Fee: Rs %.2f\n", parts[1], fee)
	return nil
}

func (s *Shell) handleFee(ctx context.Context, parts []string) error {
	if len(parts) != 2 {
		s.println("Usage: fee <plate>")
		return nil
	}

	fee, err := s.backend.QuoteFee(ctx, parts[1])
	if errors.Is(err, parking.ErrNotFound) {
		s.println("Not found")
		return nil
	}
	if err != nil {
		s.printf("Error: %s\n", err.Error())
		return err
	}

	s.printf("Fee so far for %s: Rs %.2f\n", parts[1], fee)
	return nil
}

func (s *Shell) handleFind(ctx context.Context, parts []string) error {
	if len(parts) != 2 {
		s.println("Usage: find <plate>")
		return nil
	}

	vehicle, err := s.backend.Find(ctx, parts[1])
	if errors.Is(err, parking.ErrNotFound) {
		s.println("Not found")
		return nil
	}
	if err != nil {
		s.printf("Error: %s\n", err.Error())
		return err
	}

	s.printf("%d\n", vehicle.Slot)
	return nil
}

func (s *Shell) handleStatus(ctx context.Context) error {
	doc, err := s.backend.Snapshot(ctx)
	if err != nil {
		s.printf("Error: %s\n", err.Error())
		return err
	}

	s.printf("Occupied %d/%d, available %d, revenue Rs %.2f\n",
		doc.Occupied, doc.Capacity, doc.Available, float64(doc.Stats.Revenue))

	if doc.Occupied == 0 {
		s.println("Parking lot is empty")
		return nil
	}

	s.println("Slot No.\tType\tPlate\tOwner\tEntry")
	for _, v := range doc.Vehicles {
		if !v.Parked {
			continue
		}
		s.printf("%d\t\t%s\t%s\t%s\t%s\n", v.Slot, v.Type, v.Plate, v.Owner, v.Entry)
	}
	return nil
}

func (s *Shell) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

func (s *Shell) println(line string) {
	fmt.Fprintln(s.out, line)
}
