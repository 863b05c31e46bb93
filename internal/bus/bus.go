// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package bus provides the register-oriented request/reply channel used by
// the sensor drivers. A Device is one addressed handle on a shared periph.io
// I²C bus.
package bus

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// ErrIO is matched by every error returned from a bus operation.
var ErrIO = errors.New("bus i/o failure")

// Transport is the contract the drivers consume.
type Transport interface {
	SetDeviceAddress(addr uint8) error
	Write(w []byte) error
	WriteRead(w []byte, n int) ([]byte, error)
}

// IOError describes a failed transaction.
type IOError struct {
	Op   string
	Addr uint8
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("i2c %s @0x%02X: %v", e.Op, e.Addr, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Is reports true for ErrIO so callers can classify without unwrapping.
func (e *IOError) Is(target error) bool { return target == ErrIO }

// Device is an addressed handle on an i2c.Bus. It is not safe for concurrent
// use; the acquisition loop owns it for the whole cycle.
type Device struct {
	bus  i2c.Bus
	addr uint8
	set  bool
}

// NewDevice returns a handle with no address selected yet.
func NewDevice(b i2c.Bus) *Device {
	return &Device{bus: b}
}

// SetDeviceAddress selects the 7-bit target address for later transactions.
func (d *Device) SetDeviceAddress(addr uint8) error {
	if addr > 0x7F {
		return &IOError{Op: "address", Addr: addr, Err: fmt.Errorf("address 0x%02X is not 7-bit", addr)}
	}
	d.addr = addr
	d.set = true
	return nil
}

// Address returns the selected address.
func (d *Device) Address() uint8 { return d.addr }

// Write sends w to the device.
func (d *Device) Write(w []byte) error {
	if err := d.tx("write", w, nil); err != nil {
		return err
	}
	return nil
}

// WriteRead sends w and reads n bytes back in one transaction.
func (d *Device) WriteRead(w []byte, n int) ([]byte, error) {
	r := make([]byte, n)
	if err := d.tx("write-read", w, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (d *Device) tx(op string, w, r []byte) error {
	if !d.set {
		return &IOError{Op: op, Err: errors.New("no device address selected")}
	}
	if err := d.bus.Tx(uint16(d.addr), w, r); err != nil {
		return &IOError{Op: op, Addr: d.addr, Err: err}
	}
	return nil
}

// ReadRegister reads one byte from register reg.
func ReadRegister(t Transport, reg byte) (byte, error) {
	b, err := t.WriteRead([]byte{reg}, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadRegister16 reads a big-endian signed 16-bit value starting at reg.
func ReadRegister16(t Transport, reg byte) (int16, error) {
	b, err := t.WriteRead([]byte{reg}, 2)
	if err != nil {
		return 0, err
	}
	return int16(uint16(b[0])<<8 | uint16(b[1])), nil
}

// WriteRegister writes value into register reg.
func WriteRegister(t Transport, reg, value byte) error {
	return t.Write([]byte{reg, value})
}

// Open initializes the periph host and opens the named I²C bus. An empty
// name selects the first available bus.
func Open(name string) (i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	b, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("i2c open %q: %w", name, err)
	}
	return b, nil
}
