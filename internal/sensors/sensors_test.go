package sensors

import (
	"errors"
	"testing"

	"github.com/relabs-tech/telemetry_node/internal/bus"
	"github.com/relabs-tech/telemetry_node/internal/sensors/mpl115a2"
	"github.com/relabs-tech/telemetry_node/internal/sensors/mpu6050"
	"periph.io/x/conn/v3/i2c/i2ctest"
)

func TestAbsentSources(t *testing.T) {
	p := AbsentPressure("pressure")
	if p.Present() {
		t.Error("absent pressure reports present")
	}
	if _, err := p.ReadPressure(); !errors.Is(err, ErrAbsent) {
		t.Errorf("got %v, want ErrAbsent", err)
	}
	m := AbsentMotion("motion")
	if m.Present() || m.Name() != "motion" {
		t.Error("absent motion misreports")
	}
	if _, err := m.ReadMotion(); !errors.Is(err, ErrAbsent) {
		t.Errorf("got %v, want ErrAbsent", err)
	}
}

func TestProbePressureFallsBackToAbsent(t *testing.T) {
	pb := &i2ctest.Playback{DontPanic: true}
	src, err := ProbePressure(bus.NewDevice(pb), &mpl115a2.Opts{})
	if !errors.Is(err, bus.ErrIO) {
		t.Fatalf("got %v, want bus.ErrIO", err)
	}
	if src.Present() {
		t.Error("failed probe produced a present source")
	}
}

func TestProbeMotionIdentityMismatch(t *testing.T) {
	const a = mpu6050.DefaultAddress
	pb := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: a, W: []byte{0x6B, 0x80}},
			{Addr: a, W: []byte{0x6B, 0x01}},
			{Addr: a, W: []byte{0x1B, 0x00}},
			{Addr: a, W: []byte{0x1C, 0x00}},
			{Addr: a, W: []byte{0x19, 0x07}},
			{Addr: a, W: []byte{0x1A, 0x06}},
			{Addr: a, W: []byte{0x75}, R: []byte{0x00}},
		},
		DontPanic: true,
	}
	opts := mpu6050.DefaultOpts
	opts.ResetDelay = 0
	src, dev, err := ProbeMotion(bus.NewDevice(pb), &opts)
	if !errors.Is(err, mpu6050.ErrIdentityMismatch) {
		t.Fatalf("got %v, want ErrIdentityMismatch", err)
	}
	if src.Present() || dev != nil {
		t.Error("failed probe produced a usable device")
	}
}

func TestDumpRegistersSkipsWriteOnly(t *testing.T) {
	regs := MPL115A2Registers()
	var ops []i2ctest.IO
	for _, r := range regs {
		if r.Readable() {
			ops = append(ops, i2ctest.IO{Addr: 0x60, W: []byte{r.Address}, R: []byte{r.Address}})
		}
	}
	pb := &i2ctest.Playback{Ops: ops, DontPanic: true}
	d := bus.NewDevice(pb)
	if err := d.SetDeviceAddress(0x60); err != nil {
		t.Fatal(err)
	}
	vals, err := DumpRegisters(d, regs)
	if err != nil {
		t.Fatal(err)
	}
	if len(vals) != len(regs)-1 {
		t.Errorf("dumped %d registers, want %d", len(vals), len(regs)-1)
	}
	if err := pb.Close(); err != nil {
		t.Error(err)
	}
}
