package transport

import (
	"fmt"
	"io"
	"net"

	"github.com/relabs-tech/telemetry_node/internal/telemetry"
)

// UDPSink sends each frame as a single datagram to a fixed target.
type UDPSink struct {
	conn   *net.UDPConn
	target string
}

// NewUDPSink resolves target ("host:port") and opens a connected socket.
func NewUDPSink(target string) (*UDPSink, error) {
	raddr, err := net.ResolveUDPAddr("udp", target)
	if err != nil {
		return nil, fmt.Errorf("udp: resolve %s: %w", target, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("udp: dial %s: %w", target, err)
	}
	return &UDPSink{conn: conn, target: target}, nil
}

func (s *UDPSink) Publish(_ telemetry.Packet, frame []byte) error {
	n, err := s.conn.Write(frame)
	if err != nil {
		return fmt.Errorf("udp: send to %s: %w", s.target, err)
	}
	if n != len(frame) {
		return fmt.Errorf("udp: send to %s: %w (%d of %d bytes)", s.target, io.ErrShortWrite, n, len(frame))
	}
	return nil
}

func (s *UDPSink) Close() error { return s.conn.Close() }

func (s *UDPSink) String() string { return "udp://" + s.target }
