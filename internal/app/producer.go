// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"

	"github.com/relabs-tech/telemetry_node/internal/bus"
	"github.com/relabs-tech/telemetry_node/internal/config"
	"github.com/relabs-tech/telemetry_node/internal/gps"
	"github.com/relabs-tech/telemetry_node/internal/sensors"
	"github.com/relabs-tech/telemetry_node/internal/sensors/mpl115a2"
	"github.com/relabs-tech/telemetry_node/internal/sensors/mpu6050"
	"github.com/relabs-tech/telemetry_node/internal/telemetry"
	"github.com/relabs-tech/telemetry_node/internal/transport"
)

// PressureOpts maps the configuration onto driver options.
func PressureOpts(cfg *config.Config) *mpl115a2.Opts {
	return &mpl115a2.Opts{
		Address:    cfg.PressureI2CAddr,
		SettleTime: time.Duration(cfg.PressureSettleMS) * time.Millisecond,
	}
}

// MotionOpts maps the configuration onto driver options.
func MotionOpts(cfg *config.Config) *mpu6050.Opts {
	o := mpu6050.DefaultOpts
	o.Address = cfg.MotionI2CAddr
	o.AccelRange = mpu6050.AccelRange(cfg.MotionAccelRange)
	o.GyroRange = mpu6050.GyroRange(cfg.MotionGyroRange)
	o.SampleRateDiv = cfg.MotionSampleDiv
	o.DLPF = cfg.MotionDLPFConfig
	o.SampleDelay = time.Duration(cfg.CalibrationSampleDelayMS) * time.Millisecond
	return &o
}

// ProbeSensors brings up whichever sensors are enabled on b. Each sensor
// gets its own addressed handle on the shared bus. Failures leave the
// sensor absent for the rest of the process.
func ProbeSensors(b i2c.Bus, cfg *config.Config) (sensors.PressureSource, sensors.MotionSource, *mpu6050.Dev) {
	pressure := sensors.AbsentPressure("pressure")
	if cfg.PressureEnabled {
		src, err := sensors.ProbePressure(bus.NewDevice(b), PressureOpts(cfg))
		if err != nil {
			log.Warnf("%v; pressure fields will be simulated", err)
		}
		pressure = src
	}

	motion := sensors.AbsentMotion("motion")
	var dev *mpu6050.Dev
	if cfg.MotionEnabled {
		src, d, err := sensors.ProbeMotion(bus.NewDevice(b), MotionOpts(cfg))
		if err != nil {
			log.Warnf("%v; motion fields will be simulated", err)
		}
		motion, dev = src, d
	}
	return pressure, motion, dev
}

// NewSimulator seeds from cfg, or from the clock when the seed is 0.
func NewSimulator(cfg *config.Config) *telemetry.Simulator {
	seed := cfg.RandomSeed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return telemetry.NewSeededSimulator(seed)
}

// RunTelemetryProducer acquires and sends packets until ctx is done. Only
// failure to open the bus or the UDP socket is fatal; every other problem
// degrades to simulated data or a skipped sink.
func RunTelemetryProducer(ctx context.Context, cfg *config.Config) error {
	log.Infof("starting telemetry producer, sending to %s every %v", cfg.TelemetryTarget, cfg.Cycle())

	variant, auto, err := telemetry.ParseVariant(cfg.PacketVariant)
	if err != nil {
		return err
	}
	order, err := telemetry.ParseByteOrder(cfg.PacketByteOrder)
	if err != nil {
		return err
	}

	i2cBus, err := bus.Open(cfg.I2CBus)
	if err != nil {
		return err
	}
	defer i2cBus.Close()

	pressure, motion, _ := ProbeSensors(i2cBus, cfg)

	udp, err := transport.NewUDPSink(cfg.TelemetryTarget)
	if err != nil {
		return err
	}
	sinks := transport.Fanout{udp}

	if cfg.MQTTBroker != "" {
		if s, err := transport.DialMQTT(cfg.MQTTBroker, cfg.MQTTClientID, cfg.TopicTelemetry); err != nil {
			log.Warnf("MQTT mirror disabled: %v", err)
		} else {
			log.Infof("mirroring packets to MQTT %s under %s", cfg.MQTTBroker, cfg.TopicTelemetry)
			sinks = append(sinks, s)
		}
	}
	if cfg.DisplayI2CAddr != 0 {
		if s, err := OpenDisplay(i2cBus, cfg.DisplayI2CAddr); err != nil {
			log.Warnf("display disabled: %v", err)
		} else {
			log.Infof("display: initialized at 0x%02X", cfg.DisplayI2CAddr)
			sinks = append(sinks, s)
		}
	}
	defer func() {
		if err := sinks.Close(); err != nil {
			log.Warnf("closing sinks: %v", err)
		}
	}()

	a := &Acquirer{
		Pressure:    pressure,
		Motion:      motion,
		Sim:         NewSimulator(cfg),
		Sink:        sinks,
		Variant:     variant,
		AutoVariant: auto,
		Order:       order,
		Interval:    cfg.Cycle(),
	}

	if cfg.GPSSerialPort != "" {
		tracker := gps.NewTracker(time.Duration(cfg.GPSMaxAgeMS) * time.Millisecond)
		a.Position = tracker
		go func() {
			if err := RunGPSReader(ctx, cfg.GPSSerialPort, cfg.GPSBaudRate, tracker); err != nil {
				log.Warnf("%v; position fields will be simulated", err)
			}
		}()
	}

	log.Infof("sensors: pressure present=%v, motion present=%v", pressure.Present(), motion.Present())
	if err := a.Run(ctx); err != nil {
		return fmt.Errorf("acquisition: %w", err)
	}
	log.Info("telemetry producer stopped")
	return nil
}
