package app

import (
	"fmt"
	"image"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/telemetry_node/internal/telemetry"
)

const (
	displayWidth  = 128
	displayHeight = 64
)

// ssd1306.NewI2C always talks to this address.
const panelDefaultAddr = 0x3C

// Drawer is the part of *ssd1306.Dev the display sink uses.
type Drawer interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
	Halt() error
}

// DisplaySink renders the latest packet on a 128x64 SSD1306 OLED.
type DisplaySink struct {
	mu  sync.Mutex
	dev Drawer
}

// OpenDisplay initializes the panel at addr on b and shows a splash screen.
func OpenDisplay(b i2c.Bus, addr uint16) (*DisplaySink, error) {
	dev, err := ssd1306.NewI2C(&readdressBus{Bus: b, addr: addr}, &ssd1306.DefaultOpts)
	if err != nil {
		return nil, fmt.Errorf("display: init at 0x%02X: %w", addr, err)
	}
	s := NewDisplaySink(dev)
	if err := s.show(splash()); err != nil {
		return nil, fmt.Errorf("display: splash: %w", err)
	}
	return s, nil
}

// NewDisplaySink wraps an initialized panel.
func NewDisplaySink(dev Drawer) *DisplaySink {
	return &DisplaySink{dev: dev}
}

func (s *DisplaySink) Publish(p telemetry.Packet, _ []byte) error {
	return s.show(renderPacket(p))
}

func (s *DisplaySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dev.Halt()
}

func (s *DisplaySink) show(img *image1bit.VerticalLSB) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dev.Draw(s.dev.Bounds(), img, image.Point{})
}

// readdressBus moves transactions aimed at the driver's fixed panel address
// to addr, so panels strapped to 0x3D work too.
type readdressBus struct {
	i2c.Bus
	addr uint16
}

func (b *readdressBus) Tx(addr uint16, w, r []byte) error {
	if addr == panelDefaultAddr {
		addr = b.addr
	}
	return b.Bus.Tx(addr, w, r)
}

func (b *readdressBus) String() string {
	return fmt.Sprintf("%s@0x%02X", b.Bus, b.addr)
}

func newCanvas() (*image1bit.VerticalLSB, *font.Drawer) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, displayWidth, displayHeight))
	d := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	return img, d
}

func drawLine(d *font.Drawer, row int, s string) {
	d.Dot = fixed.P(0, 12*row+11)
	d.DrawString(s)
}

// flag marks a simulated field group with '*'.
func flag(status, bit byte) string {
	if status&bit != 0 {
		return " "
	}
	return "*"
}

func renderPacket(p telemetry.Packet) *image1bit.VerticalLSB {
	img, d := newCanvas()
	drawLine(d, 0, fmt.Sprintf("T%s%6.1fC", flag(p.Status, telemetry.StatusEnvironment), p.Temperature))
	drawLine(d, 1, fmt.Sprintf("P%s%7.1fhPa", flag(p.Status, telemetry.StatusEnvironment), p.Pressure))
	drawLine(d, 2, fmt.Sprintf("Alt %7.0fm", p.Altitude))
	drawLine(d, 3, fmt.Sprintf("A%s%5.1f %5.1f", flag(p.Status, telemetry.StatusMotion), p.AccelX, p.AccelY))
	drawLine(d, 4, fmt.Sprintf("S:%02X %s", p.Status, positionLabel(p)))
	return img
}

func positionLabel(p telemetry.Packet) string {
	if p.Status&telemetry.StatusPosition == 0 {
		return "no fix"
	}
	return fmt.Sprintf("%.2f,%.2f", p.Latitude, p.Longitude)
}

func splash() *image1bit.VerticalLSB {
	img, d := newCanvas()
	d.Dot = fixed.P(10, 26)
	d.DrawString("Telemetry")
	d.Dot = fixed.P(5, 43)
	d.DrawString("Waiting for")
	d.Dot = fixed.P(25, 56)
	d.DrawString("sensors")
	return img
}
