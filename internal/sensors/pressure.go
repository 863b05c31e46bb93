// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/telemetry_node/internal/bus"
	"github.com/relabs-tech/telemetry_node/internal/env"
	"github.com/relabs-tech/telemetry_node/internal/sensors/mpl115a2"
)

// PressureReader is satisfied by *mpl115a2.Dev.
type PressureReader interface {
	Read() (env.Sample, error)
}

// PressureSource provides barometer samples when present.
type PressureSource interface {
	Name() string
	Present() bool
	ReadPressure() (env.Sample, error)
}

type pressureSource struct {
	name string
	dev  PressureReader
}

// NewPressureSource wraps a working driver.
func NewPressureSource(name string, dev PressureReader) PressureSource {
	return &pressureSource{name: name, dev: dev}
}

func (s *pressureSource) Name() string  { return s.name }
func (s *pressureSource) Present() bool { return true }

func (s *pressureSource) ReadPressure() (env.Sample, error) {
	sample, err := s.dev.Read()
	if err != nil {
		return env.Sample{}, fmt.Errorf("%s: %w", s.name, err)
	}
	return sample, nil
}

type absentPressure struct{ absent }

// AbsentPressure is the source used when no barometer is fitted or it
// failed to initialize.
func AbsentPressure(name string) PressureSource {
	return absentPressure{absent{name}}
}

func (a absentPressure) ReadPressure() (env.Sample, error) {
	return env.Sample{}, fmt.Errorf("%s: %w", a.name, ErrAbsent)
}

// ProbePressure constructs the MPL115A2 on tr. On failure the absent
// variant is returned together with the cause; it is never re-probed.
func ProbePressure(tr bus.Transport, opts *mpl115a2.Opts) (PressureSource, error) {
	const name = "pressure"
	dev, err := mpl115a2.New(tr, opts)
	if err != nil {
		return AbsentPressure(name), fmt.Errorf("%s sensor: initialization: %w", name, err)
	}
	c := dev.Coefficients()
	log.Infof("%s sensor: %s ready (A0=%.4f B1=%.6f B2=%.6f C12=%.9f)", name, dev, c.A0, c.B1, c.B2, c.C12)
	return NewPressureSource(name, dev), nil
}
