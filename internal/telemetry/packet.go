// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package telemetry builds and encodes the fixed-layout telemetry frame.
//
// Frames are written field by field at fixed offsets in an explicit byte
// order, never by reinterpreting a struct in memory. There is no padding.
// Three variants exist; their sizes are distinct so a receiver can tell
// them apart by datagram length.
package telemetry

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
)

// SyncMarker opens every frame.
const SyncMarker uint64 = 0xFFFFFFFFFFFFFFFF

// Status bits: which field groups carry hardware data.
const (
	StatusEnvironment byte = 0x01 // temperature + pressure (+ derived altitude)
	StatusMotion      byte = 0x02 // acceleration + angular rate
	StatusPosition    byte = 0x04 // latitude + longitude from GPS
)

var (
	ErrPacketSize = errors.New("telemetry: unknown frame size")
	ErrSync       = errors.New("telemetry: sync marker mismatch")
)

// Packet is one assembled telemetry record. It is built once per cycle and
// not modified after assembly.
type Packet struct {
	Sync        uint64  `json:"sync"`
	Timestamp   uint64  `json:"timestamp"` // seconds since the Unix epoch
	Temperature float32 `json:"temperature"`
	Pressure    float32 `json:"pressure"` // hPa
	Humidity    float32 `json:"humidity"`
	Altitude    float32 `json:"altitude"`
	Latitude    float32 `json:"latitude"`
	Longitude   float32 `json:"longitude"`
	AccelX      float32 `json:"accel_x"`
	AccelY      float32 `json:"accel_y"`
	AccelZ      float32 `json:"accel_z"`
	GyroX       float32 `json:"gyro_x"`
	GyroY       float32 `json:"gyro_y"`
	GyroZ       float32 `json:"gyro_z"`
	Status      byte    `json:"status"`
}

// Variant selects which fields a frame carries.
type Variant int

const (
	// VariantEnvironment: sync, timestamp, temperature, pressure, humidity,
	// altitude, latitude, longitude, status.
	VariantEnvironment Variant = iota
	// VariantMotion drops pressure and appends both motion triples.
	VariantMotion
	// VariantFull carries every field.
	VariantFull
)

type field int

const (
	fSync field = iota
	fTimestamp
	fTemperature
	fPressure
	fHumidity
	fAltitude
	fLatitude
	fLongitude
	fAccelX
	fAccelY
	fAccelZ
	fGyroX
	fGyroY
	fGyroZ
	fStatus
)

var layouts = map[Variant][]field{
	VariantEnvironment: {fSync, fTimestamp, fTemperature, fPressure, fHumidity, fAltitude, fLatitude, fLongitude, fStatus},
	VariantMotion: {fSync, fTimestamp, fTemperature, fHumidity, fAltitude, fLatitude, fLongitude,
		fAccelX, fAccelY, fAccelZ, fGyroX, fGyroY, fGyroZ, fStatus},
	VariantFull: {fSync, fTimestamp, fTemperature, fPressure, fHumidity, fAltitude, fLatitude, fLongitude,
		fAccelX, fAccelY, fAccelZ, fGyroX, fGyroY, fGyroZ, fStatus},
}

func (f field) width() int {
	switch f {
	case fSync, fTimestamp:
		return 8
	case fStatus:
		return 1
	default:
		return 4
	}
}

// Size returns the frame length of v in bytes.
func (v Variant) Size() int {
	n := 0
	for _, f := range layouts[v] {
		n += f.width()
	}
	return n
}

func (v Variant) String() string {
	switch v {
	case VariantEnvironment:
		return "environment"
	case VariantMotion:
		return "motion"
	case VariantFull:
		return "full"
	}
	return fmt.Sprintf("Variant(%d)", int(v))
}

// ParseVariant accepts "environment", "motion" or "full". auto reports
// whether per-cycle selection was requested instead ("auto").
func ParseVariant(s string) (v Variant, auto bool, err error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "auto", "":
		return VariantFull, true, nil
	case "environment", "env":
		return VariantEnvironment, false, nil
	case "motion":
		return VariantMotion, false, nil
	case "full":
		return VariantFull, false, nil
	}
	return 0, false, fmt.Errorf("telemetry: unknown packet variant %q", s)
}

// SelectVariant picks the frame matching which sensor reads succeeded.
func SelectVariant(haveEnv, haveMotion bool) Variant {
	switch {
	case haveEnv && haveMotion:
		return VariantFull
	case haveMotion:
		return VariantMotion
	default:
		return VariantEnvironment
	}
}

// Groups returns the status bits whose fields v carries. The motion frame
// has no pressure field, so it never reports the environment group.
func (v Variant) Groups() byte {
	switch v {
	case VariantEnvironment:
		return StatusEnvironment | StatusPosition
	case VariantMotion:
		return StatusMotion | StatusPosition
	}
	return StatusEnvironment | StatusMotion | StatusPosition
}

// VariantForSize maps a frame length back to its variant.
func VariantForSize(n int) (Variant, error) {
	for _, v := range []Variant{VariantEnvironment, VariantMotion, VariantFull} {
		if v.Size() == n {
			return v, nil
		}
	}
	return 0, fmt.Errorf("%w: %d bytes", ErrPacketSize, n)
}

// ParseByteOrder accepts "little" or "big".
func ParseByteOrder(s string) (binary.ByteOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "little", "le", "":
		return binary.LittleEndian, nil
	case "big", "be", "network":
		return binary.BigEndian, nil
	}
	return nil, fmt.Errorf("telemetry: unknown byte order %q", s)
}

func (p *Packet) float(f field) *float32 {
	switch f {
	case fTemperature:
		return &p.Temperature
	case fPressure:
		return &p.Pressure
	case fHumidity:
		return &p.Humidity
	case fAltitude:
		return &p.Altitude
	case fLatitude:
		return &p.Latitude
	case fLongitude:
		return &p.Longitude
	case fAccelX:
		return &p.AccelX
	case fAccelY:
		return &p.AccelY
	case fAccelZ:
		return &p.AccelZ
	case fGyroX:
		return &p.GyroX
	case fGyroY:
		return &p.GyroY
	case fGyroZ:
		return &p.GyroZ
	}
	return nil
}

// Finite reports whether every float field is a finite number.
func (p *Packet) Finite() bool {
	for f := fTemperature; f <= fGyroZ; f++ {
		x := float64(*p.float(f))
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// Encode serializes p as variant v. The result is always v.Size() bytes.
func Encode(p Packet, v Variant, order binary.ByteOrder) []byte {
	layout := layouts[v]
	buf := make([]byte, v.Size())
	off := 0
	for _, f := range layout {
		switch f {
		case fSync:
			order.PutUint64(buf[off:], p.Sync)
		case fTimestamp:
			order.PutUint64(buf[off:], p.Timestamp)
		case fStatus:
			buf[off] = p.Status
		default:
			order.PutUint32(buf[off:], math.Float32bits(*p.float(f)))
		}
		off += f.width()
	}
	return buf
}

// Decode parses a frame, inferring the variant from its length. Fields the
// variant does not carry are left zero.
func Decode(b []byte, order binary.ByteOrder) (Packet, Variant, error) {
	v, err := VariantForSize(len(b))
	if err != nil {
		return Packet{}, 0, err
	}
	var p Packet
	off := 0
	for _, f := range layouts[v] {
		switch f {
		case fSync:
			p.Sync = order.Uint64(b[off:])
		case fTimestamp:
			p.Timestamp = order.Uint64(b[off:])
		case fStatus:
			p.Status = b[off]
		default:
			*p.float(f) = math.Float32frombits(order.Uint32(b[off:]))
		}
		off += f.width()
	}
	if p.Sync != SyncMarker {
		return p, v, fmt.Errorf("%w: 0x%016X", ErrSync, p.Sync)
	}
	return p, v, nil
}
