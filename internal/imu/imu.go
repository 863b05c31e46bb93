package imu

// StandardGravity in m/s².
const StandardGravity = 9.80665

// Vector is a three-axis quantity.
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns v+o.
func (v Vector) Add(o Vector) Vector {
	return Vector{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// Sub returns v-o.
func (v Vector) Sub(o Vector) Vector {
	return Vector{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// Scale returns v*k.
func (v Vector) Scale(k float64) Vector {
	return Vector{X: v.X * k, Y: v.Y * k, Z: v.Z * k}
}

// Raw represents the register contents of a single motion sample.
type Raw struct {
	Ax int16 `json:"ax"` // accel
	Ay int16 `json:"ay"`
	Az int16 `json:"az"`

	Gx int16 `json:"gx"` // gyro
	Gy int16 `json:"gy"`
	Gz int16 `json:"gz"`

	Temp int16 `json:"temp"`
}

// Reading is one motion sample in physical units.
type Reading struct {
	Accel       Vector  `json:"accel"`  // m/s²
	Gyro        Vector  `json:"gyro"`   // °/s
	Temperature float64 `json:"temp_c"` // die temperature, °C
}

// Offsets are per-axis bias estimates produced by calibration.
type Offsets struct {
	Accel Vector `json:"accel"` // m/s²
	Gyro  Vector `json:"gyro"`  // °/s
}

// Apply returns r with the offsets subtracted. Drivers never call this on
// their own; correction is up to the caller.
func (o Offsets) Apply(r Reading) Reading {
	r.Accel = r.Accel.Sub(o.Accel)
	r.Gyro = r.Gyro.Sub(o.Gyro)
	return r
}
