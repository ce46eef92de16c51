package parking

import "time"

// Category is the vehicle class used for billing. Values other than the
// known constants are stored as given and bill at rate 0.
type Category string

const (
	Car   Category = "Car"
	Bike  Category = "Bike"
	Truck Category = "Truck"
)

// Vehicle is one admission in the ledger history.
type Vehicle struct {
	Slot      int
	Plate     string
	Owner     string
	Category  Category
	EntryTime time.Time
	ExitTime  time.Time
}

func NewVehicle(slot int, plate, owner string, category Category, entry time.Time) *Vehicle {
	return &Vehicle{
		Slot:      slot,
		Plate:     plate,
		Owner:     owner,
		Category:  category,
		EntryTime: entry,
	}
}

// Parked reports whether the vehicle has not been released yet.
func (v *Vehicle) Parked() bool {
	return v.ExitTime.IsZero()
}

// Duration is the billed interval: entry to exit, or entry to now while the
// vehicle is still parked.
func (v *Vehicle) Duration(now time.Time) time.Duration {
	end := v.ExitTime
	if end.IsZero() {
		end = now
	}
	if end.Before(v.EntryTime) {
		return 0
	}
	return end.Sub(v.EntryTime)
}
