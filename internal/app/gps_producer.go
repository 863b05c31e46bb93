package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	serial "github.com/jacobsa/go-serial/serial"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/telemetry_node/internal/gps"
)

// OpenGPS opens the receiver's serial port in 8N1 mode.
func OpenGPS(port string, baud int) (io.ReadWriteCloser, error) {
	opts := serial.OpenOptions{
		PortName:              port,
		BaudRate:              uint(baud),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	p, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("gps: open %s: %w", port, err)
	}
	log.Infof("gps: serial port opened on %s at %d baud", port, baud)
	return p, nil
}

// ReadNMEA feeds RMC fixes from r into t until r is exhausted or ctx is
// done. Other sentence types and corrupted lines are skipped.
func ReadNMEA(ctx context.Context, r io.Reader, t *gps.Tracker) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		fix, err := gps.ParseSentence(sc.Text())
		if err != nil {
			if !errors.Is(err, gps.ErrNotRMC) {
				log.Debugf("gps: %v", err)
			}
			continue
		}
		if t.Update(fix, time.Now()) {
			log.Debugf("gps: fix %.6f,%.6f at %s", fix.Latitude, fix.Longitude, fix.Time)
		}
	}
	if err := sc.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("gps: read: %w", err)
	}
	return nil
}

// RunGPSReader opens port and keeps t updated until ctx is done. The port
// is closed on cancellation to unblock the pending read.
func RunGPSReader(ctx context.Context, port string, baud int, t *gps.Tracker) error {
	p, err := OpenGPS(port, baud)
	if err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() { p.Close() })
	defer func() {
		if stop() {
			p.Close()
		}
	}()
	return ReadNMEA(ctx, p, t)
}
