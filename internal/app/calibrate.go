package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/relabs-tech/telemetry_node/internal/bus"
	"github.com/relabs-tech/telemetry_node/internal/config"
	"github.com/relabs-tech/telemetry_node/internal/imu"
	"github.com/relabs-tech/telemetry_node/internal/sensors/mpu6050"
)

// OffsetCalibrator is satisfied by *mpu6050.Dev.
type OffsetCalibrator interface {
	Calibrate(samples int) (imu.Offsets, error)
}

// CalibrationResult is written to disk after a stationary calibration.
// The offsets are advisory; nothing applies them automatically.
type CalibrationResult struct {
	Version    int       `json:"version" yaml:"version"`
	Sensor     string    `json:"sensor" yaml:"sensor"`
	Address    string    `json:"address" yaml:"address"`
	Timestamp  time.Time `json:"timestamp" yaml:"timestamp"`
	Samples    int       `json:"samples" yaml:"samples"`
	AccelRange string    `json:"accel_range" yaml:"accel_range"`
	GyroRange  string    `json:"gyro_range" yaml:"gyro_range"`

	AccelOffsetX float64 `json:"accel_offset_x" yaml:"accel_offset_x"` // m/s²
	AccelOffsetY float64 `json:"accel_offset_y" yaml:"accel_offset_y"`
	AccelOffsetZ float64 `json:"accel_offset_z" yaml:"accel_offset_z"`
	GyroOffsetX  float64 `json:"gyro_offset_x" yaml:"gyro_offset_x"` // °/s
	GyroOffsetY  float64 `json:"gyro_offset_y" yaml:"gyro_offset_y"`
	GyroOffsetZ  float64 `json:"gyro_offset_z" yaml:"gyro_offset_z"`
}

// Offsets returns the result as an imu.Offsets for imu.Offsets.Apply.
func (r CalibrationResult) Offsets() imu.Offsets {
	return imu.Offsets{
		Accel: imu.Vector{X: r.AccelOffsetX, Y: r.AccelOffsetY, Z: r.AccelOffsetZ},
		Gyro:  imu.Vector{X: r.GyroOffsetX, Y: r.GyroOffsetY, Z: r.GyroOffsetZ},
	}
}

// Calibrate samples c while the sensor is held still.
func Calibrate(c OffsetCalibrator, samples int, at time.Time) (CalibrationResult, error) {
	off, err := c.Calibrate(samples)
	if err != nil {
		return CalibrationResult{}, err
	}
	return CalibrationResult{
		Version:      1,
		Sensor:       "mpu6050",
		Timestamp:    at,
		Samples:      samples,
		AccelOffsetX: off.Accel.X,
		AccelOffsetY: off.Accel.Y,
		AccelOffsetZ: off.Accel.Z,
		GyroOffsetX:  off.Gyro.X,
		GyroOffsetY:  off.Gyro.Y,
		GyroOffsetZ:  off.Gyro.Z,
	}, nil
}

// WriteCalibration stores res in dir as JSON or YAML and returns the path.
func WriteCalibration(res CalibrationResult, dir, format string) (string, error) {
	var (
		b   []byte
		err error
		ext string
	)
	switch format {
	case "json", "":
		b, err = json.MarshalIndent(res, "", "  ")
		ext = "json"
	case "yaml", "yml":
		b, err = yaml.Marshal(res)
		ext = "yaml"
	default:
		return "", fmt.Errorf("unknown calibration format %q", format)
	}
	if err != nil {
		return "", err
	}
	ts := res.Timestamp.Format("2006-01-02T15-04-05Z07-00")
	name := filepath.Join(dir, fmt.Sprintf("%s_%s_calibration.%s", res.Sensor, ts, ext))
	if err := os.WriteFile(name, b, 0o644); err != nil {
		return "", err
	}
	return name, nil
}

// RunCalibrate brings up the motion sensor, averages samples readings and
// writes the offsets to dir.
func RunCalibrate(cfg *config.Config, samples int, dir, format string) error {
	if samples <= 0 {
		samples = cfg.CalibrationSamples
	}
	i2cBus, err := bus.Open(cfg.I2CBus)
	if err != nil {
		return err
	}
	defer i2cBus.Close()

	opts := MotionOpts(cfg)
	dev, err := mpu6050.New(bus.NewDevice(i2cBus), opts)
	if err != nil {
		return fmt.Errorf("motion sensor: %w", err)
	}

	log.Infof("calibration: keep the sensor still and level, sampling %d readings", samples)
	res, err := Calibrate(dev, samples, time.Now())
	if err != nil {
		return fmt.Errorf("calibration: %w", err)
	}
	res.Address = fmt.Sprintf("0x%02X", opts.Address)
	res.AccelRange = dev.AccelRange().String()
	res.GyroRange = dev.GyroRange().String()

	fmt.Printf("accel offsets (m/s²): %+.4f %+.4f %+.4f\n", res.AccelOffsetX, res.AccelOffsetY, res.AccelOffsetZ)
	fmt.Printf("gyro offsets  (°/s):  %+.4f %+.4f %+.4f\n", res.GyroOffsetX, res.GyroOffsetY, res.GyroOffsetZ)

	name, err := WriteCalibration(res, dir, format)
	if err != nil {
		return err
	}
	fmt.Printf("\nWrote: %s\n", name)
	return nil
}
