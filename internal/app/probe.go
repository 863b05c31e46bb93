package app

import (
	"fmt"
	"io"
	"text/tabwriter"

	"periph.io/x/conn/v3/i2c"

	"github.com/relabs-tech/telemetry_node/internal/bus"
	"github.com/relabs-tech/telemetry_node/internal/config"
	"github.com/relabs-tech/telemetry_node/internal/sensors"
	"github.com/relabs-tech/telemetry_node/internal/sensors/mpl115a2"
	"github.com/relabs-tech/telemetry_node/internal/sensors/mpu6050"
)

// Probe reports which sensors answer on b and dumps their registers. It
// never resets or reconfigures a device.
func Probe(b i2c.Bus, cfg *config.Config, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	if err := probeDevice(tw, b, "MPL115A2", cfg.PressureI2CAddr, sensors.MPL115A2Registers()); err != nil {
		fmt.Fprintf(tw, "  not responding: %v\n", err)
	} else if dev, err := mpl115a2.New(bus.NewDevice(b), PressureOpts(cfg)); err == nil {
		c := dev.Coefficients()
		fmt.Fprintf(tw, "  coefficients\tA0=%.4f\tB1=%.6f\tB2=%.6f\tC12=%.9f\n", c.A0, c.B1, c.B2, c.C12)
	}

	if err := probeDevice(tw, b, "MPU6050", cfg.MotionI2CAddr, sensors.MPU6050Registers()); err != nil {
		fmt.Fprintf(tw, "  not responding: %v\n", err)
	}
	return tw.Flush()
}

func probeDevice(w io.Writer, b i2c.Bus, name string, addr uint8, regs []sensors.RegisterInfo) error {
	d := bus.NewDevice(b)
	if err := d.SetDeviceAddress(addr); err != nil {
		fmt.Fprintf(w, "%s at 0x%02X\n", name, addr)
		return err
	}
	fmt.Fprintf(w, "%s at 0x%02X\n", name, d.Address())
	vals, err := sensors.DumpRegisters(d, regs)
	if err != nil {
		return err
	}
	i := 0
	for _, r := range regs {
		if !r.Readable() {
			continue
		}
		note := ""
		if r.Name == "WHO_AM_I" {
			if vals[i] == mpu6050.WhoAmI {
				note = "ok"
			} else {
				note = "unexpected identity"
			}
		}
		fmt.Fprintf(w, "  0x%02X\t%s\t0x%02X\t%08b\t%s\n", r.Address, r.Name, vals[i], vals[i], note)
		i++
	}
	return nil
}

// RunProbe opens the configured bus and prints the probe report to w.
func RunProbe(cfg *config.Config, w io.Writer) error {
	i2cBus, err := bus.Open(cfg.I2CBus)
	if err != nil {
		return err
	}
	defer i2cBus.Close()
	return Probe(i2cBus, cfg, w)
}
