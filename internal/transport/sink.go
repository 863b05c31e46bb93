// Package transport delivers encoded telemetry frames. Delivery is
// best-effort: there is no acknowledgement and no retransmission.
package transport

import (
	"errors"

	"github.com/relabs-tech/telemetry_node/internal/telemetry"
)

// Sink receives one packet per cycle, both as the assembled record and as
// its encoded frame.
type Sink interface {
	Publish(p telemetry.Packet, frame []byte) error
	Close() error
}

// Fanout publishes to every sink and reports all failures together. One
// failing sink never stops the others.
type Fanout []Sink

func (f Fanout) Publish(p telemetry.Packet, frame []byte) error {
	var errs []error
	for _, s := range f {
		if err := s.Publish(p, frame); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Close() error {
	var errs []error
	for _, s := range f {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
