package audit

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	entryAt = time.Date(2024, time.March, 5, 9, 15, 0, 0, time.Local)
	exitAt  = entryAt.Add(90 * time.Minute)
)

func TestFormatLine(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  string
	}{
		{
			name:  "park",
			event: Event{Action: ActionPark, Category: "Car", Plate: "AB1", Owner: "Alice", Entry: entryAt},
			want:  "[PARK] Car AB1 | Owner: Alice | Entry: Tue Mar  5 09:15:00 2024",
		},
		{
			name: "exit",
			event: Event{Action: ActionExit, Category: "Truck", Plate: "TR9", Owner: "Bob",
				Entry: entryAt, Exit: exitAt, Fee: 45},
			want: "[EXIT] Truck TR9 | Owner: Bob | Entry: Tue Mar  5 09:15:00 2024 | Exit: Tue Mar  5 10:45:00 2024 | Fee: Rs 45.00",
		},
		{
			name:  "summary",
			event: Event{Action: ActionSummary, Active: 3, Capacity: 10, Visits: 12, Revenue: 340},
			want:  "[SUMMARY] Active: 3/10 | Visits: 12 | Revenue: Rs 340.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatLine(tt.event))
		})
	}
}

func TestFileSinkAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parking_log.txt")
	require.NoError(t, os.WriteFile(path, []byte("previous run\n"), 0o644))

	sink, err := OpenFile(path)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, sink.Record(ctx, Event{Action: ActionPark, Category: "Bike", Plate: "CD2", Owner: "Bob", Entry: entryAt}))
	require.NoError(t, sink.Record(ctx, Event{Action: ActionExit, Category: "Bike", Plate: "CD2", Owner: "Bob", Entry: entryAt, Exit: exitAt, Fee: 15}))
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "previous run", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "[PARK] Bike CD2"))
	assert.True(t, strings.HasSuffix(lines[2], "Fee: Rs 15.00"))
}

func TestOpenFileFailure(t *testing.T) {
	_, err := OpenFile(filepath.Join(t.TempDir(), "missing", "dir", "log.txt"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open audit log")
}

type failingSink struct{ err error }

func (f failingSink) Record(context.Context, Event) error { return f.err }

func TestMultiAttemptsEverySink(t *testing.T) {
	var first, second bytes.Buffer
	boom := errors.New("disk full")

	sink := Multi(NewWriterSink(&first), failingSink{err: boom}, nil, NewWriterSink(&second))
	err := sink.Record(context.Background(), Event{Action: ActionPark, Category: "Car", Plate: "AB1", Owner: "Alice", Entry: entryAt})

	require.ErrorIs(t, err, boom)
	assert.Contains(t, first.String(), "[PARK] Car AB1")
	assert.Equal(t, first.String(), second.String())
}

func TestNopSink(t *testing.T) {
	assert.NoError(t, Nop{}.Record(context.Background(), Event{Action: ActionPark}))
}

func TestToDocument(t *testing.T) {
	doc := toDocument(Event{Action: ActionExit, Category: "Car", Plate: "AB1", Owner: "Alice",
		Slot: 2, Entry: entryAt, Exit: exitAt, Fee: 30, At: exitAt})

	assert.Equal(t, "EXIT", doc.Action)
	assert.Equal(t, 2, doc.Slot)
	require.NotNil(t, doc.Entry)
	require.NotNil(t, doc.Exit)
	assert.True(t, doc.Exit.Equal(exitAt))
	assert.InDelta(t, 30.0, doc.Fee, 0.001)

	summary := toDocument(Event{Action: ActionSummary, Active: 1, Capacity: 5})
	assert.Nil(t, summary.Entry)
	assert.Nil(t, summary.Exit)
	assert.False(t, summary.Recorded.IsZero())
}
