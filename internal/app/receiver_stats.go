package app

// Span summarizes one field over the history.
type Span struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
}

// Axes holds a Span per axis.
type Axes struct {
	X Span `json:"x"`
	Y Span `json:"y"`
	Z Span `json:"z"`
}

// Summary is served by /api/telemetry/stats.
type Summary struct {
	TotalPackets  int  `json:"total_packets"`
	Temperature   Span `json:"temperature"`
	Pressure      Span `json:"pressure"`
	Humidity      Span `json:"humidity"`
	Altitude      Span `json:"altitude"`
	Accelerometer Axes `json:"accelerometer"`
	Gyroscope     Axes `json:"gyroscope"`
}

type spanAcc struct {
	min, max, sum float64
	n             int
}

func (a *spanAcc) add(v float32) {
	f := float64(v)
	if a.n == 0 || f < a.min {
		a.min = f
	}
	if a.n == 0 || f > a.max {
		a.max = f
	}
	a.sum += f
	a.n++
}

func (a *spanAcc) span() Span {
	if a.n == 0 {
		return Span{}
	}
	return Span{Min: a.min, Max: a.max, Avg: a.sum / float64(a.n)}
}

// Summarize computes min/max/avg per field. ok is false for an empty
// history.
func Summarize(h []Received) (s Summary, ok bool) {
	if len(h) == 0 {
		return Summary{}, false
	}
	var t, p, hum, alt, ax, ay, az, gx, gy, gz spanAcc
	for _, r := range h {
		t.add(r.Temperature)
		p.add(r.Pressure)
		hum.add(r.Humidity)
		alt.add(r.Altitude)
		ax.add(r.AccelX)
		ay.add(r.AccelY)
		az.add(r.AccelZ)
		gx.add(r.GyroX)
		gy.add(r.GyroY)
		gz.add(r.GyroZ)
	}
	return Summary{
		TotalPackets:  len(h),
		Temperature:   t.span(),
		Pressure:      p.span(),
		Humidity:      hum.span(),
		Altitude:      alt.span(),
		Accelerometer: Axes{X: ax.span(), Y: ay.span(), Z: az.span()},
		Gyroscope:     Axes{X: gx.span(), Y: gy.span(), Z: gz.span()},
	}, true
}
