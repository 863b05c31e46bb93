package app

import (
	"image"
	"strings"
	"testing"

	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/telemetry_node/internal/telemetry"
)

type fakePanel struct {
	frames []image.Image
	halted bool
}

func (f *fakePanel) Bounds() image.Rectangle { return image.Rect(0, 0, displayWidth, displayHeight) }

func (f *fakePanel) Draw(_ image.Rectangle, src image.Image, _ image.Point) error {
	f.frames = append(f.frames, src)
	return nil
}

func (f *fakePanel) Halt() error {
	f.halted = true
	return nil
}

func lit(img *image1bit.VerticalLSB) int {
	n := 0
	for _, b := range img.Pix {
		for ; b != 0; b &= b - 1 {
			n++
		}
	}
	return n
}

func TestOpenDisplayUsesConfiguredAddress(t *testing.T) {
	for _, addr := range []uint16{0x3C, 0x3D} {
		rec := &i2ctest.Record{}
		s, err := OpenDisplay(rec, addr)
		if err != nil {
			t.Fatalf("0x%02X: %v", addr, err)
		}
		if len(rec.Ops) == 0 {
			t.Fatalf("0x%02X: no bus traffic", addr)
		}
		for _, op := range rec.Ops {
			if op.Addr != addr {
				t.Fatalf("0x%02X: transaction sent to 0x%02X", addr, op.Addr)
			}
		}
		if err := s.Close(); err != nil {
			t.Error(err)
		}
	}
}

func TestDisplaySinkDrawsEveryPacket(t *testing.T) {
	panel := &fakePanel{}
	s := NewDisplaySink(panel)
	p := telemetry.Packet{Temperature: 21.5, Pressure: 1001.2, Status: telemetry.StatusEnvironment}
	if err := s.Publish(p, nil); err != nil {
		t.Fatal(err)
	}
	if err := s.Publish(p, nil); err != nil {
		t.Fatal(err)
	}
	if len(panel.frames) != 2 {
		t.Fatalf("drew %d frames", len(panel.frames))
	}
	img, ok := panel.frames[0].(*image1bit.VerticalLSB)
	if !ok || lit(img) == 0 {
		t.Error("blank frame")
	}
	if err := s.Close(); err != nil || !panel.halted {
		t.Error("panel not halted on close")
	}
}

func TestDisplayFlags(t *testing.T) {
	if flag(telemetry.StatusEnvironment, telemetry.StatusEnvironment) != " " ||
		flag(0, telemetry.StatusMotion) != "*" {
		t.Error("simulated marker")
	}
	if positionLabel(telemetry.Packet{}) != "no fix" {
		t.Error("position label without fix")
	}
	if got := positionLabel(telemetry.Packet{Latitude: 1.5, Longitude: -2.25, Status: telemetry.StatusPosition}); got != "1.50,-2.25" {
		t.Errorf("position label = %q", got)
	}
}

func TestFormatPacket(t *testing.T) {
	p := telemetry.Packet{Timestamp: 3, Temperature: 21.5, Status: telemetry.StatusEnvironment}
	line := FormatPacket(p, telemetry.VariantEnvironment)
	for _, want := range []string{"[environment]", "status=0x01", "T  21.50", "A*", "POS*"} {
		if !strings.Contains(line, want) {
			t.Errorf("%q missing %q", line, want)
		}
	}
}
