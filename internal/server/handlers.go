package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"smart-parking/internal/logging"
	"smart-parking/internal/parking"
)

const (
	msgParked        = "Vehicle parked successfully"
	msgExited        = "Vehicle exited successfully"
	msgFeeCalculated = "Fee calculated"
	msgLotFull       = "Parking lot full"
	msgAlreadyParked = "Vehicle already parked"
	msgNotFound      = "Vehicle not found"
	msgInvalidBody   = "Invalid request body"
)

// Ledger is the parking state the handlers operate on.
type Ledger interface {
	Admit(ctx context.Context, plate, owner string, category parking.Category) (int, error)
	Release(ctx context.Context, plate string) (parking.Receipt, error)
	QuoteFee(ctx context.Context, plate string) (float64, error)
	Find(ctx context.Context, plate string) (parking.Vehicle, error)
	Snapshot(ctx context.Context) parking.Snapshot
	Stats() parking.Stats
}

type Handler struct {
	ledger      Ledger
	serviceName string
}

func NewHandler(ledger Ledger, serviceName string) *Handler {
	return &Handler{ledger: ledger, serviceName: serviceName}
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Service: h.serviceName,
		Meta:    extractMeta(r.Context()),
	})
}

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page, err := RenderDashboard(NewSnapshotDocument(h.ledger.Snapshot(ctx)))
	if err != nil {
		logging.Error(ctx).Err(err).Msg("render dashboard")
		WriteError(ctx, w, http.StatusInternalServerError, "Internal server error")
		return
	}
	WriteHTML(w, http.StatusOK, page)
}

func (h *Handler) Data(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, NewSnapshotDocument(h.ledger.Snapshot(r.Context())))
}

func (h *Handler) Park(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	form, err := readForm(w, r)
	if err != nil {
		logging.Warn(ctx).Err(err).Msg("park: bad form body")
		WriteJSON(w, http.StatusOK, ParkResponse{Message: msgInvalidBody, Code: CodeInvalidRequest})
		return
	}

	plate := form.Get("plate")
	slot, err := h.ledger.Admit(ctx, plate, form.Get("owner"), parking.Category(form.Get("type")))
	if err != nil {
		message, code := failureOf(err)
		logging.Info(ctx).Str("plate", plate).Str("code", code).Msg("park rejected")
		WriteJSON(w, http.StatusOK, ParkResponse{Message: message, Code: code})
		return
	}

	logging.Info(ctx).Str("plate", plate).Int("slot", slot).Msg("vehicle parked")
	WriteJSON(w, http.StatusOK, ParkResponse{Success: true, Message: msgParked, Slot: slot})
}

func (h *Handler) Exit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	form, err := readForm(w, r)
	if err != nil {
		logging.Warn(ctx).Err(err).Msg("exit: bad form body")
		WriteJSON(w, http.StatusOK, FeeResponse{Message: msgInvalidBody, Code: CodeInvalidRequest})
		return
	}

	plate := form.Get("plate")
	receipt, err := h.ledger.Release(ctx, plate)
	if err != nil {
		message, code := failureOf(err)
		logging.Info(ctx).Str("plate", plate).Str("code", code).Msg("exit rejected")
		WriteJSON(w, http.StatusOK, FeeResponse{Message: message, Code: code})
		return
	}

	logging.Info(ctx).
		Str("plate", plate).
		Float64("fee", receipt.Fee).
		Dur("duration", receipt.Duration).
		Msg("vehicle exited")
	WriteJSON(w, http.StatusOK, FeeResponse{Success: true, Message: msgExited, Fee: Amount(receipt.Fee)})
}

func (h *Handler) Fee(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	fee, err := h.ledger.QuoteFee(ctx, r.URL.Query().Get("plate"))
	if err != nil {
		message, code := failureOf(err)
		WriteJSON(w, http.StatusOK, FeeResponse{Message: message, Code: code})
		return
	}
	WriteJSON(w, http.StatusOK, FeeResponse{Success: true, Message: msgFeeCalculated, Fee: Amount(fee)})
}

func (h *Handler) FindByPlate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	plate := chi.URLParam(r, "plate")
	if plate == "" {
		WriteError(ctx, w, http.StatusBadRequest, "Plate number is required")
		return
	}

	vehicle, err := h.ledger.Find(ctx, plate)
	if err != nil {
		WriteError(ctx, w, http.StatusNotFound, msgNotFound)
		return
	}

	WriteSuccess(ctx, w, "Vehicle found", NewVehicleDocument(vehicle))
}

func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	WriteText(w, http.StatusNotFound, "404 Not Found")
}

func failureOf(err error) (message, code string) {
	switch {
	case errors.Is(err, parking.ErrAtCapacity):
		return msgLotFull, CodeAtCapacity
	case errors.Is(err, parking.ErrAlreadyParked):
		return msgAlreadyParked, CodeAlreadyParked
	case errors.Is(err, parking.ErrNotFound):
		return msgNotFound, CodeNotFound
	default:
		return err.Error(), CodeInternal
	}
}
