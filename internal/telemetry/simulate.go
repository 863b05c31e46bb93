package telemetry

import "math/rand/v2"

// Range is a closed interval of plausible values.
type Range struct {
	Min, Max float64
}

// Simulated value ranges used when a field group has no hardware source.
var (
	TemperatureRange  = Range{-40, 60}       // °C
	PressureRange     = Range{800, 1200}     // hPa
	HumidityRange     = Range{0, 100}        // %
	AltitudeRange     = Range{0, 50000}      // m
	LatitudeRange     = Range{-90, 90}       // °
	LongitudeRange    = Range{-180, 180}     // °
	AccelerationRange = Range{-156.9, 156.9} // m/s², ±16 g
	AngularRateRange  = Range{-2000, 2000}   // °/s
)

// Simulator draws fallback values from an explicitly owned random source.
type Simulator struct {
	rng *rand.Rand
}

// NewSimulator uses src for every draw.
func NewSimulator(src rand.Source) *Simulator {
	return &Simulator{rng: rand.New(src)}
}

// NewSeededSimulator is deterministic for a given seed.
func NewSeededSimulator(seed uint64) *Simulator {
	return NewSimulator(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15))
}

// Draw returns a value in [r.Min, r.Max).
func (s *Simulator) Draw(r Range) float32 {
	return float32(r.Min + s.rng.Float64()*(r.Max-r.Min))
}
