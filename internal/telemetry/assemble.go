package telemetry

import (
	"math"
	"time"

	"github.com/relabs-tech/telemetry_node/internal/env"
	"github.com/relabs-tech/telemetry_node/internal/gps"
	"github.com/relabs-tech/telemetry_node/internal/imu"
)

// SeaLevelHPa is the ISA reference pressure.
const SeaLevelHPa = 1013.25

// Altitude converts pressure in hPa to metres with the barometric formula.
// Non-positive or non-finite input returns 0.
func Altitude(pressureHPa float64) float64 {
	if !(pressureHPa > 0) || math.IsInf(pressureHPa, 0) {
		return 0
	}
	return 44330 * (1 - math.Pow(pressureHPa/SeaLevelHPa, 0.1903))
}

// Inputs are the hardware readings available this cycle; nil means the
// group is simulated.
type Inputs struct {
	Env    *env.Sample
	Motion *imu.Reading
	Fix    *gps.Fix
}

// Status encodes which groups in in are authoritative.
func (in Inputs) Status() byte {
	var s byte
	if in.Env != nil {
		s |= StatusEnvironment
	}
	if in.Motion != nil {
		s |= StatusMotion
	}
	if in.Fix != nil {
		s |= StatusPosition
	}
	return s
}

// Assemble builds a packet from in, filling every missing group from sim.
// Humidity has no hardware source and is always simulated.
func Assemble(in Inputs, sim *Simulator, now time.Time) Packet {
	p := Packet{
		Sync:   SyncMarker,
		Status: in.Status(),
	}
	if ts := now.Unix(); ts > 0 {
		p.Timestamp = uint64(ts)
	}

	if in.Env != nil {
		p.Temperature = float32(in.Env.Temperature)
		p.Pressure = float32(in.Env.PressureHPa)
		p.Altitude = float32(Altitude(in.Env.PressureHPa))
	} else {
		p.Temperature = sim.Draw(TemperatureRange)
		p.Pressure = sim.Draw(PressureRange)
		p.Altitude = sim.Draw(AltitudeRange)
	}

	p.Humidity = sim.Draw(HumidityRange)

	if in.Fix != nil {
		p.Latitude = float32(in.Fix.Latitude)
		p.Longitude = float32(in.Fix.Longitude)
	} else {
		p.Latitude = sim.Draw(LatitudeRange)
		p.Longitude = sim.Draw(LongitudeRange)
	}

	if in.Motion != nil {
		a, g := in.Motion.Accel, in.Motion.Gyro
		p.AccelX, p.AccelY, p.AccelZ = float32(a.X), float32(a.Y), float32(a.Z)
		p.GyroX, p.GyroY, p.GyroZ = float32(g.X), float32(g.Y), float32(g.Z)
	} else {
		p.AccelX = sim.Draw(AccelerationRange)
		p.AccelY = sim.Draw(AccelerationRange)
		p.AccelZ = sim.Draw(AccelerationRange)
		p.GyroX = sim.Draw(AngularRateRange)
		p.GyroY = sim.Draw(AngularRateRange)
		p.GyroZ = sim.Draw(AngularRateRange)
	}
	return p
}
