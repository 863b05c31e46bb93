package bus

import (
	"errors"
	"testing"

	"periph.io/x/conn/v3/i2c/i2ctest"
)

func TestDeviceWriteRead(t *testing.T) {
	pb := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x60, W: []byte{0x12, 0x00}},
			{Addr: 0x60, W: []byte{0x04}, R: []byte{0x3E}},
			{Addr: 0x60, W: []byte{0x3B}, R: []byte{0xFF, 0x38}},
		},
		DontPanic: true,
	}
	d := NewDevice(pb)
	if err := d.SetDeviceAddress(0x60); err != nil {
		t.Fatalf("SetDeviceAddress: %v", err)
	}
	if err := WriteRegister(d, 0x12, 0x00); err != nil {
		t.Fatalf("WriteRegister: %v", err)
	}
	v, err := ReadRegister(d, 0x04)
	if err != nil {
		t.Fatalf("ReadRegister: %v", err)
	}
	if v != 0x3E {
		t.Errorf("ReadRegister = 0x%02X, want 0x3E", v)
	}
	w, err := ReadRegister16(d, 0x3B)
	if err != nil {
		t.Fatalf("ReadRegister16: %v", err)
	}
	if w != -200 {
		t.Errorf("ReadRegister16 = %d, want -200", w)
	}
	if err := pb.Close(); err != nil {
		t.Errorf("unconsumed playback: %v", err)
	}
}

func TestDeviceErrorsAreIO(t *testing.T) {
	pb := &i2ctest.Playback{DontPanic: true}
	d := NewDevice(pb)

	if _, err := d.WriteRead([]byte{0x00}, 1); !errors.Is(err, ErrIO) {
		t.Errorf("unaddressed read: got %v, want ErrIO", err)
	}
	if err := d.SetDeviceAddress(0x80); !errors.Is(err, ErrIO) {
		t.Errorf("8-bit address: got %v, want ErrIO", err)
	}
	if err := d.SetDeviceAddress(0x68); err != nil {
		t.Fatal(err)
	}
	err := d.Write([]byte{0x6B, 0x80})
	if !errors.Is(err, ErrIO) {
		t.Fatalf("got %v, want ErrIO", err)
	}
	var ioErr *IOError
	if !errors.As(err, &ioErr) || ioErr.Addr != 0x68 || ioErr.Op != "write" {
		t.Errorf("unexpected error detail: %#v", err)
	}
}
