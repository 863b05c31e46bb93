// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package mpl115a2 drives the Freescale MPL115A2 barometer over I²C.
//
// The device has no identity register. Four signed fixed-point coefficients
// are read once at construction and used by the compensation polynomial on
// every conversion.
package mpl115a2

import (
	"fmt"
	"time"

	"github.com/relabs-tech/telemetry_node/internal/bus"
	"github.com/relabs-tech/telemetry_node/internal/env"
	"periph.io/x/conn/v3/physic"
)

// DefaultAddress is the fixed 7-bit address of the part.
const DefaultAddress = 0x60

const (
	regPressureMSB = 0x00
	regPressureLSB = 0x01
	regTempMSB     = 0x02
	regTempLSB     = 0x03
	regA0MSB       = 0x04
	regA0LSB       = 0x05
	regB1MSB       = 0x06
	regB1LSB       = 0x07
	regB2MSB       = 0x08
	regB2LSB       = 0x09
	regC12MSB      = 0x0A
	regC12LSB      = 0x0B
	regConvert     = 0x12
)

// Fixed-point divisors from the datasheet coefficient formats.
const (
	DivisorA0  = 8.0
	DivisorB1  = 8192.0
	DivisorB2  = 16384.0
	DivisorC12 = 4194304.0
)

// Linear fit constants for the output stage.
const (
	pressureSpan   = 65.0 / 1023.0 // 50..115 kPa over the 10-bit range
	pressureOffset = 50.0
	tempCenter     = 498.0 // counts at 25 °C
	tempSlope      = -5.35 // counts per °C
	tempReference  = 25.0
)

// Opts configures the driver.
type Opts struct {
	Address    uint8
	SettleTime time.Duration // wait between start-conversion and readout (3–5 ms)
}

// DefaultOpts matches the datasheet typical values.
var DefaultOpts = Opts{
	Address:    DefaultAddress,
	SettleTime: 5 * time.Millisecond,
}

// Coefficients are the decoded factory calibration values.
type Coefficients struct {
	A0  float64 `json:"a0"`
	B1  float64 `json:"b1"`
	B2  float64 `json:"b2"`
	C12 float64 `json:"c12"`
}

// Dev is a handle to one MPL115A2.
type Dev struct {
	tr     bus.Transport
	opts   Opts
	coeffs Coefficients
}

// New addresses the device and reads its coefficients. Any failed register
// read yields an error matching bus.ErrIO.
func New(tr bus.Transport, opts *Opts) (*Dev, error) {
	o := DefaultOpts
	if opts != nil {
		o = *opts
	}
	if o.Address == 0 {
		o.Address = DefaultAddress
	}
	if err := tr.SetDeviceAddress(o.Address); err != nil {
		return nil, fmt.Errorf("mpl115a2: set address: %w", err)
	}
	d := &Dev{tr: tr, opts: o}
	if err := d.readCoefficients(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dev) readCoefficients() error {
	regs := []struct {
		name     string
		msb, lsb byte
		divisor  float64
		dst      *float64
	}{
		{"A0", regA0MSB, regA0LSB, DivisorA0, &d.coeffs.A0},
		{"B1", regB1MSB, regB1LSB, DivisorB1, &d.coeffs.B1},
		{"B2", regB2MSB, regB2LSB, DivisorB2, &d.coeffs.B2},
		{"C12", regC12MSB, regC12LSB, DivisorC12, &d.coeffs.C12},
	}
	for _, r := range regs {
		msb, err := bus.ReadRegister(d.tr, r.msb)
		if err != nil {
			return fmt.Errorf("mpl115a2: read %s msb: %w", r.name, err)
		}
		lsb, err := bus.ReadRegister(d.tr, r.lsb)
		if err != nil {
			return fmt.Errorf("mpl115a2: read %s lsb: %w", r.name, err)
		}
		*r.dst = DecodeCoefficient(msb, lsb, r.divisor)
	}
	return nil
}

// Coefficients returns a copy of the decoded calibration.
func (d *Dev) Coefficients() Coefficients { return d.coeffs }

// Read starts a conversion, waits for it to settle and returns the
// compensated reading. The caller owns retry policy.
func (d *Dev) Read() (env.Sample, error) {
	raw, err := d.ReadRaw()
	if err != nil {
		return env.Sample{}, err
	}
	return d.coeffs.Compensate(raw), nil
}

// ReadRaw returns the 10-bit ADC counts of one conversion.
func (d *Dev) ReadRaw() (env.Raw, error) {
	if err := bus.WriteRegister(d.tr, regConvert, 0x00); err != nil {
		return env.Raw{}, fmt.Errorf("mpl115a2: start conversion: %w", err)
	}
	time.Sleep(d.opts.SettleTime)

	var b [4]byte
	for i, reg := range []byte{regPressureMSB, regPressureLSB, regTempMSB, regTempLSB} {
		v, err := bus.ReadRegister(d.tr, reg)
		if err != nil {
			return env.Raw{}, fmt.Errorf("mpl115a2: read register 0x%02X: %w", reg, err)
		}
		b[i] = v
	}
	return env.Raw{
		Pressure:    ADC10(b[0], b[1]),
		Temperature: ADC10(b[2], b[3]),
	}, nil
}

// Sense fills e with temperature and pressure, periph style.
func (d *Dev) Sense(e *physic.Env) error {
	s, err := d.Read()
	if err != nil {
		return err
	}
	e.Temperature = physic.ZeroCelsius + physic.Temperature(s.Temperature*float64(physic.Kelvin))
	e.Pressure = physic.Pressure(s.PressureHPa * 100 * float64(physic.Pascal))
	return nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("MPL115A2{0x%02X}", d.opts.Address)
}

// Compensate applies the vendor polynomial and the linear output fits.
func (c Coefficients) Compensate(raw env.Raw) env.Sample {
	t := float64(raw.Temperature)
	kpa := c.PressureComp(raw)*pressureSpan + pressureOffset
	return env.Sample{
		Source:      "mpl115a2",
		PressureKPa: kpa,
		PressureHPa: kpa * 10,
		Temperature: (t-tempCenter)/tempSlope + tempReference,
	}
}

// PressureComp evaluates the compensation polynomial on raw counts.
func (c Coefficients) PressureComp(raw env.Raw) float64 {
	p := float64(raw.Pressure)
	t := float64(raw.Temperature)
	return c.A0 + (c.B1+c.C12*t)*p + c.B2*t
}

// DecodeCoefficient reinterprets (msb<<8)|lsb as two's complement and
// divides by the fixed-point divisor.
func DecodeCoefficient(msb, lsb byte, divisor float64) float64 {
	return float64(int16(uint16(msb)<<8|uint16(lsb))) / divisor
}

// EncodeCoefficient is the inverse of DecodeCoefficient, rounding to the
// nearest representable register value.
func EncodeCoefficient(v, divisor float64) (msb, lsb byte) {
	scaled := v * divisor
	if scaled >= 0 {
		scaled += 0.5
	} else {
		scaled -= 0.5
	}
	raw := uint16(int16(scaled))
	return byte(raw >> 8), byte(raw)
}

// ADC10 rebuilds a 10-bit conversion result from its two registers.
func ADC10(msb, lsb byte) uint16 {
	return uint16(msb)<<2 | uint16(lsb)>>6
}
