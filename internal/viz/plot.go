package viz

import (
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/demsim/internal/metrics"
)

// Series names accepted by Plot.
var Series = map[string]func(metrics.Sample) float64{
	"energy":    func(s metrics.Sample) float64 { return s.KineticEnergy },
	"dt":        func(s metrics.Sample) float64 { return s.Dt },
	"max_speed": func(s metrics.Sample) float64 { return s.MaxSpeed },
	"com_z":     func(s metrics.Sample) float64 { return s.CentreOfMass.Z },
	"contacts":  func(s metrics.Sample) float64 { return float64(s.Contacts) },
}

// Plot draws one telemetry column as an ASCII line chart.
func Plot(samples []metrics.Sample, series string, width, height int) string {
	get, ok := Series[series]
	if !ok || len(samples) == 0 {
		return ""
	}
	values := make([]float64, len(samples))
	for i, s := range samples {
		values[i] = get(s)
	}
	return asciigraph.Plot(values,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(series),
	)
}
