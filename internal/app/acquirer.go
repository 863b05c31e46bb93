// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/binary"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/telemetry_node/internal/env"
	"github.com/relabs-tech/telemetry_node/internal/gps"
	"github.com/relabs-tech/telemetry_node/internal/imu"
	"github.com/relabs-tech/telemetry_node/internal/sensors"
	"github.com/relabs-tech/telemetry_node/internal/telemetry"
	"github.com/relabs-tech/telemetry_node/internal/transport"
)

// PositionSource returns the latest fresh GPS fix, if any.
type PositionSource interface {
	Latest(now time.Time) (gps.Fix, bool)
}

// Acquirer runs one sense → assemble → encode → send cycle at a time.
// Sensor failures degrade a single cycle to simulated values; they never
// stop the loop.
type Acquirer struct {
	Pressure sensors.PressureSource
	Motion   sensors.MotionSource
	Position PositionSource // nil when no GPS is configured

	Sim  *telemetry.Simulator
	Sink transport.Sink

	// Variant is used as-is unless AutoVariant is set, in which case the
	// variant is chosen each cycle from which reads succeeded.
	Variant     telemetry.Variant
	AutoVariant bool
	Order       binary.ByteOrder

	Interval time.Duration
}

// Cycle performs one acquisition and returns what was sent.
func (a *Acquirer) Cycle(now time.Time) (telemetry.Packet, telemetry.Variant) {
	var in telemetry.Inputs

	if a.Pressure != nil && a.Pressure.Present() {
		if s, err := a.Pressure.ReadPressure(); err != nil {
			log.Warnf("cycle: %v, simulating environment", err)
		} else {
			in.Env = &s
		}
	}
	if a.Motion != nil && a.Motion.Present() {
		if r, err := a.Motion.ReadMotion(); err != nil {
			log.Warnf("cycle: %v, simulating motion", err)
		} else {
			in.Motion = &r
		}
	}
	if a.Position != nil {
		if f, ok := a.Position.Latest(now); ok {
			in.Fix = &f
		}
	}

	v := a.Variant
	if a.AutoVariant {
		v = telemetry.SelectVariant(in.Env != nil, in.Motion != nil)
	}
	p := telemetry.Assemble(in, a.Sim, now)
	p.Status &= v.Groups()
	frame := telemetry.Encode(p, v, a.order())

	logCycle(p, v, in.Env, in.Motion)

	if a.Sink != nil {
		if err := a.Sink.Publish(p, frame); err != nil {
			log.Warnf("cycle: send %s packet: %v", v, err)
		}
	}
	return p, v
}

func (a *Acquirer) order() binary.ByteOrder {
	if a.Order == nil {
		return binary.LittleEndian
	}
	return a.Order
}

// Run cycles on a ticker until ctx is done. The first cycle runs
// immediately.
func (a *Acquirer) Run(ctx context.Context) error {
	interval := a.Interval
	if interval <= 0 {
		return errors.New("acquirer: interval must be positive")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.Cycle(time.Now())
	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-ticker.C:
			a.Cycle(t)
		}
	}
}

func logCycle(p telemetry.Packet, v telemetry.Variant, e *env.Sample, m *imu.Reading) {
	if !log.IsLevelEnabled(log.DebugLevel) {
		return
	}
	fields := log.Fields{
		"variant": v.String(),
		"status":  p.Status,
		"ts":      p.Timestamp,
	}
	if e != nil {
		fields["temp_c"] = e.Temperature
		fields["pressure_hpa"] = e.PressureHPa
	}
	if m != nil {
		fields["accel"] = m.Accel
		fields["gyro"] = m.Gyro
	}
	log.WithFields(fields).Debug("packet assembled")
}
