package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/trace"

	"smart-parking/internal/parking"
)

// TimeLayout is used for entry and exit times in documents.
const TimeLayout = "2006-01-02 15:04:05"

// NotParked is shown as the exit time of a vehicle that is still parked.
const NotParked = "-"

// Response codes for failed park, exit and fee requests.
const (
	CodeAtCapacity     = "at_capacity"
	CodeAlreadyParked  = "already_parked"
	CodeNotFound       = "not_found"
	CodeInvalidRequest = "invalid_request"
	CodeInternal       = "internal"
)

// Amount is a currency value that always serializes with two decimals.
type Amount float64

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(float64(a), 'f', 2, 64)), nil
}

type Meta struct {
	TraceID   string `json:"trace_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Response is the envelope for lookups and server errors.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Meta    *Meta  `json:"meta,omitempty"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Meta    *Meta  `json:"meta,omitempty"`
}

type ParkResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Slot    int    `json:"slot,omitempty"`
	Code    string `json:"code,omitempty"`
}

// FeeResponse answers both /exit and /fee.
type FeeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Fee     Amount `json:"fee"`
	Code    string `json:"code,omitempty"`
}

type VehicleDocument struct {
	Slot   int    `json:"slot"`
	Type   string `json:"type"`
	Plate  string `json:"plate"`
	Owner  string `json:"owner"`
	Entry  string `json:"entry"`
	Exit   string `json:"exit"`
	Parked bool   `json:"parked"`
}

type StatsDocument struct {
	Cars    int    `json:"cars"`
	Bikes   int    `json:"bikes"`
	Trucks  int    `json:"trucks"`
	Active  int    `json:"active"`
	Revenue Amount `json:"revenue"`
}

// SnapshotDocument is the body of GET /data and the model of the dashboard.
type SnapshotDocument struct {
	Capacity  int               `json:"capacity"`
	Occupied  int               `json:"occupied"`
	Available int               `json:"available"`
	Total     int               `json:"total"`
	Vehicles  []VehicleDocument `json:"vehicles"`
	Stats     StatsDocument     `json:"stats"`
}

func NewVehicleDocument(v parking.Vehicle) VehicleDocument {
	doc := VehicleDocument{
		Slot:   v.Slot,
		Type:   string(v.Category),
		Plate:  v.Plate,
		Owner:  v.Owner,
		Entry:  formatTime(v.EntryTime),
		Exit:   NotParked,
		Parked: v.Parked(),
	}
	if !v.Parked() {
		doc.Exit = formatTime(v.ExitTime)
	}
	return doc
}

func NewSnapshotDocument(snap parking.Snapshot) SnapshotDocument {
	doc := SnapshotDocument{
		Capacity:  snap.Capacity,
		Occupied:  snap.Occupied,
		Available: snap.Available,
		Total:     snap.Total,
		Vehicles:  make([]VehicleDocument, 0, len(snap.Vehicles)),
		Stats: StatsDocument{
			Cars:    snap.Counts.Cars,
			Bikes:   snap.Counts.Bikes,
			Trucks:  snap.Counts.Trucks,
			Active:  snap.Active,
			Revenue: Amount(snap.Revenue),
		},
	}
	for _, v := range snap.Vehicles {
		doc.Vehicles = append(doc.Vehicles, NewVehicleDocument(v))
	}
	return doc
}

func formatTime(t time.Time) string {
	return t.Local().Format(TimeLayout)
}

// WriteJSON buffers the encoded body so Content-Length is always known.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		writeBody(w, http.StatusInternalServerError, "text/plain; charset=utf-8", []byte("Internal Server Error"))
		return
	}
	writeBody(w, status, "application/json", buf.Bytes())
}

func WriteHTML(w http.ResponseWriter, status int, body []byte) {
	writeBody(w, status, "text/html; charset=utf-8", body)
}

func WriteText(w http.ResponseWriter, status int, body string) {
	writeBody(w, status, "text/plain; charset=utf-8", []byte(body))
}

func writeBody(w http.ResponseWriter, status int, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	w.Write(body)
}

func extractMeta(ctx context.Context) *Meta {
	meta := &Meta{}

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasTraceID() {
		meta.TraceID = span.SpanContext().TraceID().String()
	}

	if reqID, ok := ctx.Value(RequestIDKey).(string); ok {
		meta.RequestID = reqID
	}

	return meta
}

func WriteSuccess(ctx context.Context, w http.ResponseWriter, message string, data any) {
	WriteJSON(w, http.StatusOK, Response{
		Success: true,
		Message: message,
		Data:    data,
		Meta:    extractMeta(ctx),
	})
}

func WriteError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, Response{
		Success: false,
		Error:   message,
		Meta:    extractMeta(ctx),
	})
}
