package app

import (
	"bytes"
	"strings"
	"testing"

	"periph.io/x/conn/v3/i2c/i2ctest"

	"github.com/relabs-tech/telemetry_node/internal/config"
	"github.com/relabs-tech/telemetry_node/internal/sensors"
)

// mplCoefficients holds A0=0x3ECE, B1=0xB3F9, B2=0xC517, C12=0x33C8.
var mplCoefficients = map[byte]byte{
	0x04: 0x3E, 0x05: 0xCE, 0x06: 0xB3, 0x07: 0xF9,
	0x08: 0xC5, 0x09: 0x17, 0x0A: 0x33, 0x0B: 0xC8,
}

func dumpOps(addr uint16, regs []sensors.RegisterInfo, vals map[byte]byte) []i2ctest.IO {
	var ops []i2ctest.IO
	for _, r := range regs {
		if r.Readable() {
			ops = append(ops, i2ctest.IO{Addr: addr, W: []byte{r.Address}, R: []byte{vals[r.Address]}})
		}
	}
	return ops
}

func coefficientReads() []i2ctest.IO {
	var ops []i2ctest.IO
	for reg := byte(0x04); reg <= 0x0B; reg++ {
		ops = append(ops, i2ctest.IO{Addr: 0x60, W: []byte{reg}, R: []byte{mplCoefficients[reg]}})
	}
	return ops
}

func sensorConfig() *config.Config {
	return &config.Config{PressureI2CAddr: 0x60, MotionI2CAddr: 0x68}
}

func line(t *testing.T, out, substr string) string {
	t.Helper()
	for _, l := range strings.Split(out, "\n") {
		if strings.Contains(l, substr) {
			return l
		}
	}
	t.Fatalf("no line containing %q in:\n%s", substr, out)
	return ""
}

func TestReportListsBothSensors(t *testing.T) {
	var ops []i2ctest.IO
	ops = append(ops, dumpOps(0x60, sensors.MPL115A2Registers(), mplCoefficients)...)
	ops = append(ops, coefficientReads()...)
	ops = append(ops, dumpOps(0x68, sensors.MPU6050Registers(), map[byte]byte{0x75: 0x68})...)
	pb := &i2ctest.Playback{Ops: ops, DontPanic: true}

	var out bytes.Buffer
	if err := Probe(pb, sensorConfig(), &out); err != nil {
		t.Fatal(err)
	}
	s := out.String()
	line(t, s, "MPL115A2 at 0x60")
	line(t, s, "MPU6050 at 0x68")
	c := line(t, s, "coefficients")
	for _, want := range []string{"A0=2009.7500", "B1=-2.375854", "B2=-0.920471", "C12=0.003160477"} {
		if !strings.Contains(c, want) {
			t.Errorf("coefficient line %q lacks %s", c, want)
		}
	}
	if l := line(t, s, "WHO_AM_I"); !strings.HasSuffix(strings.TrimSpace(l), "ok") {
		t.Errorf("identity line = %q", l)
	}
	if err := pb.Close(); err != nil {
		t.Error(err)
	}
}

func TestReportFlagsWrongIdentityAndMissingBarometer(t *testing.T) {
	ops := dumpOps(0x68, sensors.MPU6050Registers(), map[byte]byte{0x75: 0x70})
	pb := &i2ctest.Playback{Ops: ops, DontPanic: true}

	var out bytes.Buffer
	if err := Probe(pb, sensorConfig(), &out); err != nil {
		t.Fatal(err)
	}
	s := out.String()
	line(t, s, "not responding")
	if strings.Contains(s, "coefficients") {
		t.Error("coefficients printed for a silent barometer")
	}
	if l := line(t, s, "WHO_AM_I"); !strings.Contains(l, "0x70") || !strings.Contains(l, "unexpected identity") {
		t.Errorf("identity line = %q", l)
	}
}
