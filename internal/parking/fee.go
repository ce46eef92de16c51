package parking

import "time"

// MinimumBilledHours is the billing floor applied to short stays.
const MinimumBilledHours = 1.0

var hourlyRates = map[Category]float64{
	Car:   20,
	Bike:  10,
	Truck: 30,
}

// HourlyRate returns the rate for c, or 0 for an unknown category.
func (c Category) HourlyRate() float64 {
	return hourlyRates[c]
}

func (c Category) Known() bool {
	_, ok := hourlyRates[c]
	return ok
}

// Fee bills hours at the category rate. Stays shorter than an hour are
// billed as a full hour; longer stays are billed linearly.
func Fee(category Category, hours float64) float64 {
	if hours < MinimumBilledHours {
		hours = MinimumBilledHours
	}
	return hours * category.HourlyRate()
}

func FeeFor(category Category, d time.Duration) float64 {
	return Fee(category, d.Hours())
}
