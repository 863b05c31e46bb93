package env

// Sample represents a single compensated barometer measurement.
type Sample struct {
	Source string `json:"source"` // device name, e.g. "mpl115a2"

	Temperature float64 `json:"temp_c"`       // °C
	PressureKPa float64 `json:"pressure_kpa"` // kPa, as produced by the output fit
	PressureHPa float64 `json:"pressure_hpa"` // hPa
}

// Raw holds the 10-bit ADC counts behind a Sample.
type Raw struct {
	Pressure    uint16 `json:"padc"`
	Temperature uint16 `json:"tadc"`
}
