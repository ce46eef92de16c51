package server

import (
	"bytes"
	"embed"
	"html/template"

	"smart-parking/internal/parking"
)

//go:embed templates/dashboard.html
var templateFS embed.FS

var dashboardTemplate = template.Must(template.ParseFS(templateFS, "templates/dashboard.html"))

// RefreshSeconds is how often the dashboard polls /data.
const RefreshSeconds = 2

type rateOption struct {
	Category parking.Category
	Rate     float64
}

type dashboardView struct {
	Doc            SnapshotDocument
	UsagePercent   int
	RefreshSeconds int
	Rates          []rateOption
}

// RenderDashboard renders the HTML page for doc. It depends on nothing but
// its argument.
func RenderDashboard(doc SnapshotDocument) ([]byte, error) {
	view := dashboardView{
		Doc:            doc,
		UsagePercent:   usagePercent(doc.Occupied, doc.Capacity),
		RefreshSeconds: RefreshSeconds,
	}
	for _, c := range []parking.Category{parking.Car, parking.Bike, parking.Truck} {
		view.Rates = append(view.Rates, rateOption{Category: c, Rate: c.HourlyRate()})
	}

	var buf bytes.Buffer
	if err := dashboardTemplate.Execute(&buf, view); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func usagePercent(occupied, capacity int) int {
	if capacity <= 0 {
		return 0
	}
	return (100*occupied + capacity/2) / capacity
}
