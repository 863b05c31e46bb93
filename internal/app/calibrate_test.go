package app

import (
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/relabs-tech/telemetry_node/internal/imu"
)

type fakeCalibrator struct {
	off imu.Offsets
	err error
	n   int
}

func (f *fakeCalibrator) Calibrate(n int) (imu.Offsets, error) {
	f.n = n
	return f.off, f.err
}

func TestCalibrateResult(t *testing.T) {
	fc := &fakeCalibrator{off: imu.Offsets{
		Accel: imu.Vector{X: 0.1, Y: -0.2, Z: 0.05},
		Gyro:  imu.Vector{X: 1.5, Y: 0, Z: -0.5},
	}}
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	res, err := Calibrate(fc, 50, at)
	if err != nil {
		t.Fatal(err)
	}
	if fc.n != 50 || res.Samples != 50 || !res.Timestamp.Equal(at) {
		t.Errorf("result header = %+v", res)
	}
	if res.Offsets() != fc.off {
		t.Errorf("offsets = %+v, want %+v", res.Offsets(), fc.off)
	}
}

func TestCalibrateError(t *testing.T) {
	boom := errors.New("read failed")
	if _, err := Calibrate(&fakeCalibrator{err: boom}, 10, time.Now()); !errors.Is(err, boom) {
		t.Errorf("got %v", err)
	}
}

func TestWriteCalibration(t *testing.T) {
	res := CalibrationResult{
		Version:      1,
		Sensor:       "mpu6050",
		Timestamp:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Samples:      10,
		GyroOffsetX:  1.25,
		AccelOffsetZ: -0.5,
	}
	dir := t.TempDir()

	name, err := WriteCalibration(res, dir, "json")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(name, "mpu6050_2026-03-01T12-00-00Z-00_calibration.json") {
		t.Errorf("file name = %s", name)
	}
	b, err := os.ReadFile(name)
	if err != nil {
		t.Fatal(err)
	}
	var back CalibrationResult
	if err := json.Unmarshal(b, &back); err != nil || back.GyroOffsetX != 1.25 {
		t.Errorf("json = %s (%v)", b, err)
	}

	name, err = WriteCalibration(res, dir, "yaml")
	if err != nil {
		t.Fatal(err)
	}
	b, err = os.ReadFile(name)
	if err != nil {
		t.Fatal(err)
	}
	var y map[string]any
	if err := yaml.Unmarshal(b, &y); err != nil || y["accel_offset_z"] != -0.5 {
		t.Errorf("yaml = %s (%v)", b, err)
	}

	if _, err := WriteCalibration(res, dir, "xml"); err == nil {
		t.Error("unknown format accepted")
	}
}
