package audit

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// FileSink appends one human-readable line per event.
type FileSink struct {
	mu sync.Mutex
	w  io.Writer
	c  io.Closer
}

// OpenFile opens path for appending, creating it if needed.
func OpenFile(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log %s: %w", path, err)
	}
	return &FileSink{w: f, c: f}, nil
}

// NewWriterSink writes audit lines to w. The caller owns w.
func NewWriterSink(w io.Writer) *FileSink {
	return &FileSink{w: w}
}

func (s *FileSink) Record(_ context.Context, event Event) error {
	line := FormatLine(event)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := io.WriteString(s.w, line+"\n"); err != nil {
		return fmt.Errorf("write audit line: %w", err)
	}
	if f, ok := s.w.(*os.File); ok {
		if err := f.Sync(); err != nil {
			return fmt.Errorf("sync audit log: %w", err)
		}
	}
	return nil
}

func (s *FileSink) Close() error {
	if s.c == nil {
		return nil
	}
	return s.c.Close()
}

// FormatLine renders event in the parking log format. Timestamps use the
// ANSI C layout.
func FormatLine(event Event) string {
	switch event.Action {
	case ActionPark:
		return fmt.Sprintf("[PARK] %s %s | Owner: %s | Entry: %s",
			event.Category, event.Plate, event.Owner, stamp(event.Entry))
	case ActionExit:
		return fmt.Sprintf("[EXIT] %s %s | Owner: %s | Entry: %s | Exit: %s | Fee: Rs %.2f",
			event.Category, event.Plate, event.Owner, stamp(event.Entry), stamp(event.Exit), event.Fee)
	case ActionSummary:
		return fmt.Sprintf("[SUMMARY] Active: %d/%d | Visits: %d | Revenue: Rs %.2f",
			event.Active, event.Capacity, event.Visits, event.Revenue)
	default:
		return fmt.Sprintf("[%s] %s %s", event.Action, event.Category, event.Plate)
	}
}

func stamp(t time.Time) string {
	return t.Local().Format(time.ANSIC)
}
