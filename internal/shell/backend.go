package shell

import (
	"context"

	"smart-parking/internal/parking"
	"smart-parking/internal/server"
)

// Backend is what the shell drives: the in-process ledger or a remote
// server through internal/client.
type Backend interface {
	Park(ctx context.Context, plate, owner string, category parking.Category) (int, error)
	Exit(ctx context.Context, plate string) (float64, error)
	QuoteFee(ctx context.Context, plate string) (float64, error)
	Find(ctx context.Context, plate string) (server.VehicleDocument, error)
	Snapshot(ctx context.Context) (server.SnapshotDocument, error)
}

// LocalBackend adapts a ledger shared with the HTTP server.
type LocalBackend struct {
	ledger server.Ledger
}

func NewLocalBackend(ledger server.Ledger) *LocalBackend {
	return &LocalBackend{ledger: ledger}
}

func (b *LocalBackend) Park(ctx context.Context, plate, owner string, category parking.Category) (int, error) {
	return b.ledger.Admit(ctx, plate, owner, category)
}

func (b *LocalBackend) Exit(ctx context.Context, plate string) (float64, error) {
	receipt, err := b.ledger.Release(ctx, plate)
	if err != nil {
		return 0, err
	}
	return receipt.Fee, nil
}

func (b *LocalBackend) QuoteFee(ctx context.Context, plate string) (float64, error) {
	return b.ledger.QuoteFee(ctx, plate)
}

func (b *LocalBackend) Find(ctx context.Context, plate string) (server.VehicleDocument, error) {
	vehicle, err := b.ledger.Find(ctx, plate)
	if err != nil {
		return server.VehicleDocument{}, err
	}
	return server.NewVehicleDocument(vehicle), nil
}

func (b *LocalBackend) Snapshot(ctx context.Context) (server.SnapshotDocument, error) {
	return server.NewSnapshotDocument(b.ledger.Snapshot(ctx)), nil
}
