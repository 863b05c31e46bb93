// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package mpu6050 drives the InvenSense MPU6050 6-axis motion sensor over I²C.
package mpu6050

import (
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/telemetry_node/internal/bus"
	"github.com/relabs-tech/telemetry_node/internal/imu"
)

const (
	DefaultAddress = 0x68 // AD0 low
	AltAddress     = 0x69 // AD0 high

	// WhoAmI is the identity register content of a genuine part.
	WhoAmI = 0x68
)

const (
	regSmplrtDiv   = 0x19
	regConfig      = 0x1A
	regGyroConfig  = 0x1B
	regAccelConfig = 0x1C
	regAccelXOutH  = 0x3B
	regAccelYOutH  = 0x3D
	regAccelZOutH  = 0x3F
	regTempOutH    = 0x41
	regGyroXOutH   = 0x43
	regGyroYOutH   = 0x45
	regGyroZOutH   = 0x47
	regPwrMgmt1    = 0x6B
	regWhoAmI      = 0x75

	pwrReset      = 0x80
	pwrClkselPLLX = 0x01
)

// ErrIdentityMismatch is matched by *IdentityError.
var ErrIdentityMismatch = errors.New("mpu6050: identity mismatch")

// IdentityError reports a wrong or absent device at the configured address.
type IdentityError struct {
	Addr uint8
	Got  byte
}

func (e *IdentityError) Error() string {
	return fmt.Sprintf("mpu6050: WHO_AM_I at 0x%02X is 0x%02X, expected 0x%02X", e.Addr, e.Got, WhoAmI)
}

func (e *IdentityError) Is(target error) bool { return target == ErrIdentityMismatch }

// AccelRange selects the accelerometer full scale: 0=±2g, 1=±4g, 2=±8g, 3=±16g.
type AccelRange byte

const (
	Accel2G AccelRange = iota
	Accel4G
	Accel8G
	Accel16G
)

var accelLSBPerG = [...]float64{16384, 8192, 4096, 2048}

// Scale is the LSB count per g.
func (r AccelRange) Scale() float64 { return accelLSBPerG[r] }

// FullScale is the rated span in g.
func (r AccelRange) FullScale() int { return 2 << r }

func (r AccelRange) valid() bool { return r <= Accel16G }

func (r AccelRange) String() string { return fmt.Sprintf("±%dg", r.FullScale()) }

// GyroRange selects the gyroscope full scale: 0=±250°/s, 1=±500°/s,
// 2=±1000°/s, 3=±2000°/s.
type GyroRange byte

const (
	Gyro250DPS GyroRange = iota
	Gyro500DPS
	Gyro1000DPS
	Gyro2000DPS
)

var gyroLSBPerDPS = [...]float64{131, 65.5, 32.8, 16.4}

// Scale is the LSB count per °/s.
func (r GyroRange) Scale() float64 { return gyroLSBPerDPS[r] }

// FullScale is the rated span in °/s.
func (r GyroRange) FullScale() int { return 250 << r }

func (r GyroRange) valid() bool { return r <= Gyro2000DPS }

func (r GyroRange) String() string { return fmt.Sprintf("±%d°/s", r.FullScale()) }

// Opts configures the device at construction.
type Opts struct {
	Address       uint8
	AccelRange    AccelRange
	GyroRange     GyroRange
	SampleRateDiv byte // output rate = 1kHz / (1 + div) with the DLPF enabled
	DLPF          byte // CONFIG.DLPF_CFG, 0-7
	ResetDelay    time.Duration
	SampleDelay   time.Duration // spacing of calibration samples
}

// DefaultOpts gives ~125Hz output with a ~5Hz low-pass filter.
var DefaultOpts = Opts{
	Address:       DefaultAddress,
	AccelRange:    Accel2G,
	GyroRange:     Gyro250DPS,
	SampleRateDiv: 7,
	DLPF:          6,
	ResetDelay:    100 * time.Millisecond,
	SampleDelay:   10 * time.Millisecond,
}

// Dev is a configured, verified MPU6050.
type Dev struct {
	tr   bus.Transport
	opts Opts

	accelRange AccelRange
	gyroRange  GyroRange
	accelScale float64
	gyroScale  float64
}

// New resets, configures and verifies the device. A failed register write
// aborts construction; a wrong identity returns *IdentityError.
func New(tr bus.Transport, opts *Opts) (*Dev, error) {
	o := DefaultOpts
	if opts != nil {
		o = *opts
	}
	if o.Address == 0 {
		o.Address = DefaultAddress
	}
	if !o.AccelRange.valid() {
		return nil, fmt.Errorf("mpu6050: invalid accel range %d", o.AccelRange)
	}
	if !o.GyroRange.valid() {
		return nil, fmt.Errorf("mpu6050: invalid gyro range %d", o.GyroRange)
	}
	if o.DLPF > 7 {
		return nil, fmt.Errorf("mpu6050: invalid DLPF config %d", o.DLPF)
	}
	if err := tr.SetDeviceAddress(o.Address); err != nil {
		return nil, fmt.Errorf("mpu6050: set address: %w", err)
	}

	d := &Dev{tr: tr, opts: o}

	// Resetting
	if err := bus.WriteRegister(tr, regPwrMgmt1, pwrReset); err != nil {
		return nil, fmt.Errorf("mpu6050: reset: %w", err)
	}
	time.Sleep(o.ResetDelay)

	// Configured
	if err := bus.WriteRegister(tr, regPwrMgmt1, pwrClkselPLLX); err != nil {
		return nil, fmt.Errorf("mpu6050: clock source: %w", err)
	}
	if err := d.SetGyroRange(o.GyroRange); err != nil {
		return nil, err
	}
	if err := d.SetAccelRange(o.AccelRange); err != nil {
		return nil, err
	}
	if err := bus.WriteRegister(tr, regSmplrtDiv, o.SampleRateDiv); err != nil {
		return nil, fmt.Errorf("mpu6050: sample rate divider: %w", err)
	}
	if err := bus.WriteRegister(tr, regConfig, o.DLPF); err != nil {
		return nil, fmt.Errorf("mpu6050: DLPF config: %w", err)
	}

	// Verified
	id, err := bus.ReadRegister(tr, regWhoAmI)
	if err != nil {
		return nil, fmt.Errorf("mpu6050: read WHO_AM_I: %w", err)
	}
	if id != WhoAmI {
		return nil, &IdentityError{Addr: o.Address, Got: id}
	}
	log.Debugf("mpu6050: ready at 0x%02X (WHO_AM_I 0x%02X, accel %s, gyro %s)", o.Address, id, d.accelRange, d.gyroRange)
	return d, nil
}

// SetAccelRange writes ACCEL_CONFIG and, only once the write succeeded,
// switches the scale used by later reads.
func (d *Dev) SetAccelRange(r AccelRange) error {
	if !r.valid() {
		return fmt.Errorf("mpu6050: invalid accel range %d", r)
	}
	if err := bus.WriteRegister(d.tr, regAccelConfig, byte(r)<<3); err != nil {
		return fmt.Errorf("mpu6050: set accel range %s: %w", r, err)
	}
	d.accelRange = r
	d.accelScale = r.Scale()
	return nil
}

// SetGyroRange writes GYRO_CONFIG and then switches the angular-rate scale.
func (d *Dev) SetGyroRange(r GyroRange) error {
	if !r.valid() {
		return fmt.Errorf("mpu6050: invalid gyro range %d", r)
	}
	if err := bus.WriteRegister(d.tr, regGyroConfig, byte(r)<<3); err != nil {
		return fmt.Errorf("mpu6050: set gyro range %s: %w", r, err)
	}
	d.gyroRange = r
	d.gyroScale = r.Scale()
	return nil
}

// AccelRange returns the active accelerometer range.
func (d *Dev) AccelRange() AccelRange { return d.accelRange }

// GyroRange returns the active gyroscope range.
func (d *Dev) GyroRange() GyroRange { return d.gyroRange }

func (d *Dev) readTriple(name string, regs [3]byte) ([3]int16, error) {
	var out [3]int16
	for i, reg := range regs {
		v, err := bus.ReadRegister16(d.tr, reg)
		if err != nil {
			return out, fmt.Errorf("mpu6050: read %s %c: %w", name, 'X'+i, err)
		}
		out[i] = v
	}
	return out, nil
}

// ReadAcceleration returns acceleration in m/s².
func (d *Dev) ReadAcceleration() (imu.Vector, error) {
	raw, err := d.readTriple("accel", [3]byte{regAccelXOutH, regAccelYOutH, regAccelZOutH})
	if err != nil {
		return imu.Vector{}, err
	}
	return ScaleAccel(raw, d.accelScale), nil
}

// ReadAngularRate returns angular rate in °/s.
func (d *Dev) ReadAngularRate() (imu.Vector, error) {
	raw, err := d.readTriple("gyro", [3]byte{regGyroXOutH, regGyroYOutH, regGyroZOutH})
	if err != nil {
		return imu.Vector{}, err
	}
	return ScaleGyro(raw, d.gyroScale), nil
}

// ReadTemperature returns the die temperature in °C.
func (d *Dev) ReadTemperature() (float64, error) {
	raw, err := bus.ReadRegister16(d.tr, regTempOutH)
	if err != nil {
		return 0, fmt.Errorf("mpu6050: read temperature: %w", err)
	}
	return Temperature(raw), nil
}

// ReadRaw returns the register contents of one sample: acceleration, then
// angular rate, then temperature.
func (d *Dev) ReadRaw() (imu.Raw, error) {
	a, err := d.readTriple("accel", [3]byte{regAccelXOutH, regAccelYOutH, regAccelZOutH})
	if err != nil {
		return imu.Raw{}, err
	}
	g, err := d.readTriple("gyro", [3]byte{regGyroXOutH, regGyroYOutH, regGyroZOutH})
	if err != nil {
		return imu.Raw{}, err
	}
	t, err := bus.ReadRegister16(d.tr, regTempOutH)
	if err != nil {
		return imu.Raw{}, fmt.Errorf("mpu6050: read temperature: %w", err)
	}
	return imu.Raw{Ax: a[0], Ay: a[1], Az: a[2], Gx: g[0], Gy: g[1], Gz: g[2], Temp: t}, nil
}

// ReadAll returns acceleration, angular rate and temperature, or an error if
// any of the three fails.
func (d *Dev) ReadAll() (imu.Reading, error) {
	r, err := d.ReadRaw()
	if err != nil {
		return imu.Reading{}, err
	}
	return imu.Reading{
		Accel:       ScaleAccel([3]int16{r.Ax, r.Ay, r.Az}, d.accelScale),
		Gyro:        ScaleGyro([3]int16{r.Gx, r.Gy, r.Gz}, d.gyroScale),
		Temperature: Temperature(r.Temp),
	}, nil
}

// Calibrate averages n readings taken SampleDelay apart and returns the
// per-axis bias. The device must be stationary and level: standard gravity
// is removed from the Z acceleration. A failing read aborts the run.
//
// The offsets are not applied to later reads.
func (d *Dev) Calibrate(n int) (imu.Offsets, error) {
	if n < 1 {
		return imu.Offsets{}, fmt.Errorf("mpu6050: calibrate needs at least one sample, got %d", n)
	}
	log.Infof("mpu6050: calibrating with %d samples", n)

	var sumA, sumG imu.Vector
	for i := 0; i < n; i++ {
		r, err := d.ReadAll()
		if err != nil {
			return imu.Offsets{}, fmt.Errorf("mpu6050: calibration sample %d/%d: %w", i+1, n, err)
		}
		sumA = sumA.Add(r.Accel)
		sumG = sumG.Add(r.Gyro)
		if i%50 == 0 {
			log.Debugf("mpu6050: calibration sample %d/%d", i+1, n)
		}
		time.Sleep(d.opts.SampleDelay)
	}

	off := imu.Offsets{
		Accel: sumA.Scale(1 / float64(n)),
		Gyro:  sumG.Scale(1 / float64(n)),
	}
	off.Accel.Z -= imu.StandardGravity
	log.Infof("mpu6050: accel offsets X=%.3f Y=%.3f Z=%.3f m/s²", off.Accel.X, off.Accel.Y, off.Accel.Z)
	log.Infof("mpu6050: gyro offsets X=%.3f Y=%.3f Z=%.3f °/s", off.Gyro.X, off.Gyro.Y, off.Gyro.Z)
	return off, nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("MPU6050{0x%02X}", d.opts.Address)
}

// ScaleAccel converts raw counts to m/s² using scale LSB/g.
func ScaleAccel(raw [3]int16, scale float64) imu.Vector {
	return imu.Vector{
		X: float64(raw[0]) / scale * imu.StandardGravity,
		Y: float64(raw[1]) / scale * imu.StandardGravity,
		Z: float64(raw[2]) / scale * imu.StandardGravity,
	}
}

// ScaleGyro converts raw counts to °/s using scale LSB/(°/s).
func ScaleGyro(raw [3]int16, scale float64) imu.Vector {
	return imu.Vector{
		X: float64(raw[0]) / scale,
		Y: float64(raw[1]) / scale,
		Z: float64(raw[2]) / scale,
	}
}

// Temperature converts TEMP_OUT to °C.
func Temperature(raw int16) float64 {
	return float64(raw)/340 + 36.53
}
