// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/telemetry_node/internal/bus"
	"github.com/relabs-tech/telemetry_node/internal/imu"
	"github.com/relabs-tech/telemetry_node/internal/sensors/mpu6050"
)

// MotionReader is satisfied by *mpu6050.Dev.
type MotionReader interface {
	ReadAll() (imu.Reading, error)
}

// MotionSource provides motion samples when present.
type MotionSource interface {
	Name() string
	Present() bool
	ReadMotion() (imu.Reading, error)
}

type motionSource struct {
	name string
	dev  MotionReader
}

// NewMotionSource wraps a working driver.
func NewMotionSource(name string, dev MotionReader) MotionSource {
	return &motionSource{name: name, dev: dev}
}

func (s *motionSource) Name() string  { return s.name }
func (s *motionSource) Present() bool { return true }

func (s *motionSource) ReadMotion() (imu.Reading, error) {
	r, err := s.dev.ReadAll()
	if err != nil {
		return imu.Reading{}, fmt.Errorf("%s: %w", s.name, err)
	}
	return r, nil
}

type absentMotion struct{ absent }

// AbsentMotion is the source used when no motion sensor is usable.
func AbsentMotion(name string) MotionSource {
	return absentMotion{absent{name}}
}

func (a absentMotion) ReadMotion() (imu.Reading, error) {
	return imu.Reading{}, fmt.Errorf("%s: %w", a.name, ErrAbsent)
}

// ProbeMotion resets, configures and verifies the MPU6050 on tr. The device
// is returned as well so callers can calibrate it.
func ProbeMotion(tr bus.Transport, opts *mpu6050.Opts) (MotionSource, *mpu6050.Dev, error) {
	const name = "motion"
	dev, err := mpu6050.New(tr, opts)
	if err != nil {
		return AbsentMotion(name), nil, fmt.Errorf("%s sensor: initialization: %w", name, err)
	}
	log.Infof("%s sensor: %s ready, accelerometer range %s, gyroscope range %s", name, dev, dev.AccelRange(), dev.GyroRange())
	return NewMotionSource(name, dev), dev, nil
}
