package app

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/telemetry_node/internal/config"
	"github.com/relabs-tech/telemetry_node/internal/telemetry"
)

const maxDatagram = 1500

// ErrNonFinite marks a frame carrying NaN or infinite values, which the
// JSON API cannot represent.
var ErrNonFinite = errors.New("receiver: non-finite field value")

const (
	// HistorySize bounds the in-memory packet history.
	HistorySize = 1000
	// initialBacklog is sent to a websocket client on connect.
	initialBacklog = 50
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins
	},
}

// Received is one decoded datagram as exposed over HTTP.
type Received struct {
	telemetry.Packet
	Variant string    `json:"variant"`
	From    string    `json:"from"`
	At      time.Time `json:"received"`
}

// Receiver decodes telemetry datagrams and keeps a bounded history.
type Receiver struct {
	conn  *net.UDPConn
	order binary.ByteOrder

	mu      sync.RWMutex
	history []Received // oldest first, at most HistorySize
	packets uint64
	dropped uint64

	subMu sync.Mutex
	subs  map[chan Received]struct{}
}

// NewReceiver decodes with order. Call Listen before Serve.
func NewReceiver(order binary.ByteOrder) *Receiver {
	return &Receiver{order: order, subs: make(map[chan Received]struct{})}
}

// Listen binds the UDP socket.
func (r *Receiver) Listen(addr string) error {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("receiver: resolve %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return fmt.Errorf("receiver: listen %s: %w", addr, err)
	}
	r.conn = conn
	log.Infof("receiver: listening for telemetry on %s", conn.LocalAddr())
	return nil
}

// Addr is the bound socket address.
func (r *Receiver) Addr() net.Addr { return r.conn.LocalAddr() }

// Serve reads datagrams until ctx is done.
func (r *Receiver) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { r.conn.Close() })
	defer stop()

	buf := make([]byte, maxDatagram)
	for {
		n, from, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("receiver: read: %w", err)
		}
		if err := r.Handle(buf[:n], from.String(), time.Now()); err != nil {
			log.Warnf("receiver: %d bytes from %s: %v", n, from, err)
		}
	}
}

// Handle decodes one datagram. Frames of unknown size, with a bad sync
// marker or with non-finite values are counted and discarded.
func (r *Receiver) Handle(b []byte, from string, at time.Time) error {
	p, v, err := telemetry.Decode(b, r.order)
	if err == nil && !p.Finite() {
		err = ErrNonFinite
	}
	if err != nil {
		r.mu.Lock()
		r.dropped++
		r.mu.Unlock()
		return err
	}
	rec := Received{Packet: p, Variant: v.String(), From: from, At: at}

	r.mu.Lock()
	if len(r.history) == HistorySize {
		copy(r.history, r.history[1:])
		r.history = r.history[:HistorySize-1]
	}
	r.history = append(r.history, rec)
	r.packets++
	r.mu.Unlock()

	log.Debugf("receiver: %s packet from %s ts=%d status=0x%02X T=%.2f P=%.2f",
		v, from, p.Timestamp, p.Status, p.Temperature, p.Pressure)
	r.broadcast(rec)
	return nil
}

// Latest returns the most recent valid packet.
func (r *Receiver) Latest() (Received, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.history) == 0 {
		return Received{}, false
	}
	return r.history[len(r.history)-1], true
}

// History returns a copy of the last n packets, oldest first. n <= 0
// returns everything kept.
func (r *Receiver) History(n int) []Received {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h := r.history
	if n > 0 && n < len(h) {
		h = h[len(h)-n:]
	}
	return append([]Received(nil), h...)
}

// Stats returns the accepted and dropped datagram counts.
func (r *Receiver) Stats() (packets, dropped uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.packets, r.dropped
}

func (r *Receiver) subscribe() chan Received {
	ch := make(chan Received, 8)
	r.subMu.Lock()
	r.subs[ch] = struct{}{}
	r.subMu.Unlock()
	return ch
}

func (r *Receiver) unsubscribe(ch chan Received) {
	r.subMu.Lock()
	delete(r.subs, ch)
	r.subMu.Unlock()
}

// broadcast never blocks; slow websocket clients miss packets.
func (r *Receiver) broadcast(rec Received) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	for ch := range r.subs {
		select {
		case ch <- rec:
		default:
		}
	}
}

// wsMessage is the websocket envelope: "initial_data" carries the recent
// backlog, "telemetry" a single new packet.
type wsMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Handler serves the dashboard API and the /ws live stream.
func (r *Receiver) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/telemetry", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"data": r.History(0)})
	})
	mux.HandleFunc("/api/telemetry/latest", func(w http.ResponseWriter, _ *http.Request) {
		var data any
		if rec, ok := r.Latest(); ok {
			data = rec
		}
		writeJSON(w, map[string]any{"data": data})
	})
	mux.HandleFunc("/api/telemetry/stats", func(w http.ResponseWriter, _ *http.Request) {
		var stats any
		if s, ok := Summarize(r.History(0)); ok {
			stats = s
		}
		writeJSON(w, map[string]any{"stats": stats})
	})
	mux.HandleFunc("/api/receiver", func(w http.ResponseWriter, _ *http.Request) {
		packets, dropped := r.Stats()
		writeJSON(w, map[string]uint64{"packets": packets, "dropped": dropped})
	})
	mux.HandleFunc("/ws", r.serveWS)
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warnf("json encode error: %v", err)
	}
}

func (r *Receiver) serveWS(w http.ResponseWriter, req *http.Request) {
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		log.Warnf("receiver: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	ch := r.subscribe()
	defer r.unsubscribe(ch)
	log.Debugf("receiver: websocket client %s connected", conn.RemoteAddr())

	// Drain client frames so close messages are noticed.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if backlog := r.History(initialBacklog); len(backlog) > 0 {
		if err := conn.WriteJSON(wsMessage{Type: "initial_data", Data: backlog}); err != nil {
			return
		}
	}
	for {
		select {
		case <-gone:
			return
		case <-req.Context().Done():
			return
		case rec := <-ch:
			if err := conn.WriteJSON(wsMessage{Type: "telemetry", Data: rec}); err != nil {
				log.Debugf("receiver: websocket write: %v", err)
				return
			}
		}
	}
}

// RunReceiver listens on cfg.ReceiverListen and serves the dashboard API on
// cfg.WebServerPort until ctx is done.
func RunReceiver(ctx context.Context, cfg *config.Config) error {
	order, err := telemetry.ParseByteOrder(cfg.PacketByteOrder)
	if err != nil {
		return err
	}
	r := NewReceiver(order)
	if err := r.Listen(cfg.ReceiverListen); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.WebServerPort),
		Handler: r.Handler(),
	}
	go func() {
		log.Infof("web server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("web server: %v", err)
		}
	}()

	err = r.Serve(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		log.Warnf("web server shutdown: %v", serr)
	}
	return err
}
