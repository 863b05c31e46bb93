// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"strings"

	"github.com/relabs-tech/telemetry_node/internal/bus"
)

// BitField documents part of a register.
type BitField struct {
	Bits        string `json:"bits"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Values      string `json:"values,omitempty"`
}

// RegisterInfo describes one device register.
type RegisterInfo struct {
	Address     byte       `json:"address"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Access      string     `json:"access"` // "R", "W", "RW"
	BitFields   []BitField `json:"bit_fields,omitempty"`
}

// Readable reports whether the register may be read back.
func (r RegisterInfo) Readable() bool { return strings.Contains(r.Access, "R") }

// MPU6050Registers returns the configuration and identity registers touched
// by the driver.
func MPU6050Registers() []RegisterInfo {
	return []RegisterInfo{
		{Address: 0x19, Name: "SMPLRT_DIV", Description: "Sample Rate Divider", Access: "RW",
			BitFields: []BitField{
				{Bits: "7:0", Name: "SMPLRT_DIV", Description: "Sample Rate = Gyro_Output_Rate / (1 + SMPLRT_DIV)", Values: "0-255"},
			}},
		{Address: 0x1A, Name: "CONFIG", Description: "Configuration (DLPF)", Access: "RW",
			BitFields: []BitField{
				{Bits: "5:3", Name: "EXT_SYNC_SET", Description: "External FSYNC pin sampling", Values: "0=Disabled"},
				{Bits: "2:0", Name: "DLPF_CFG", Description: "Digital Low Pass Filter", Values: "0=260Hz, 1=184Hz, 2=94Hz, 3=44Hz, 4=21Hz, 5=10Hz, 6=5Hz"},
			}},
		{Address: 0x1B, Name: "GYRO_CONFIG", Description: "Gyroscope Configuration", Access: "RW",
			BitFields: []BitField{
				{Bits: "4:3", Name: "FS_SEL", Description: "Gyro Full Scale Range", Values: "0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s"},
			}},
		{Address: 0x1C, Name: "ACCEL_CONFIG", Description: "Accelerometer Configuration", Access: "RW",
			BitFields: []BitField{
				{Bits: "4:3", Name: "AFS_SEL", Description: "Accel Full Scale Range", Values: "0=±2g, 1=±4g, 2=±8g, 3=±16g"},
			}},
		{Address: 0x6B, Name: "PWR_MGMT_1", Description: "Power Management 1", Access: "RW",
			BitFields: []BitField{
				{Bits: "7", Name: "DEVICE_RESET", Description: "Device reset", Values: "1=Reset device"},
				{Bits: "6", Name: "SLEEP", Description: "Sleep mode", Values: "0=Disabled, 1=Sleep"},
				{Bits: "2:0", Name: "CLKSEL", Description: "Clock source", Values: "0=Internal 8MHz, 1=PLL X gyro"},
			}},
		{Address: 0x75, Name: "WHO_AM_I", Description: "Device ID (should be 0x68)", Access: "R"},
	}
}

// MPL115A2Registers returns the coefficient and output registers.
func MPL115A2Registers() []RegisterInfo {
	return []RegisterInfo{
		{Address: 0x00, Name: "Padc_MSB", Description: "10-bit pressure ADC output, bits 9:2", Access: "R"},
		{Address: 0x01, Name: "Padc_LSB", Description: "10-bit pressure ADC output, bits 1:0 in 7:6", Access: "R"},
		{Address: 0x02, Name: "Tadc_MSB", Description: "10-bit temperature ADC output, bits 9:2", Access: "R"},
		{Address: 0x03, Name: "Tadc_LSB", Description: "10-bit temperature ADC output, bits 1:0 in 7:6", Access: "R"},
		{Address: 0x04, Name: "a0_MSB", Description: "a0 coefficient, 1 sign + 12 integer + 3 fractional bits", Access: "R"},
		{Address: 0x05, Name: "a0_LSB", Description: "a0 coefficient", Access: "R"},
		{Address: 0x06, Name: "b1_MSB", Description: "b1 coefficient, 1 sign + 2 integer + 13 fractional bits", Access: "R"},
		{Address: 0x07, Name: "b1_LSB", Description: "b1 coefficient", Access: "R"},
		{Address: 0x08, Name: "b2_MSB", Description: "b2 coefficient, 1 sign + 1 integer + 14 fractional bits", Access: "R"},
		{Address: 0x09, Name: "b2_LSB", Description: "b2 coefficient", Access: "R"},
		{Address: 0x0A, Name: "c12_MSB", Description: "c12 coefficient, 1 sign + 13 fractional bits + 9 dec pt zero pad", Access: "R"},
		{Address: 0x0B, Name: "c12_LSB", Description: "c12 coefficient", Access: "R"},
		{Address: 0x12, Name: "CONVERT", Description: "Start pressure and temperature conversion", Access: "W"},
	}
}

// DumpRegisters reads every readable register in regs, in order.
func DumpRegisters(tr bus.Transport, regs []RegisterInfo) ([]byte, error) {
	out := make([]byte, 0, len(regs))
	for _, r := range regs {
		if !r.Readable() {
			continue
		}
		v, err := bus.ReadRegister(tr, r.Address)
		if err != nil {
			return out, fmt.Errorf("read %s (0x%02X): %w", r.Name, r.Address, err)
		}
		out = append(out, v)
	}
	return out, nil
}
