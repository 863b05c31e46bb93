package app

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/telemetry_node/internal/telemetry"
	"github.com/relabs-tech/telemetry_node/internal/transport"
)

func samplePacket(ts uint64) telemetry.Packet {
	return telemetry.Packet{
		Sync:        telemetry.SyncMarker,
		Timestamp:   ts,
		Temperature: 21.5,
		Pressure:    1001,
		Status:      telemetry.StatusEnvironment,
	}
}

func TestReceiverHandle(t *testing.T) {
	r := NewReceiver(binary.LittleEndian)
	if _, ok := r.Latest(); ok {
		t.Fatal("latest before any packet")
	}

	frame := telemetry.Encode(samplePacket(9), telemetry.VariantEnvironment, binary.LittleEndian)
	if err := r.Handle(frame, "10.0.0.5:4000", time.Unix(9, 0)); err != nil {
		t.Fatal(err)
	}
	rec, ok := r.Latest()
	if !ok || rec.Timestamp != 9 || rec.Variant != "environment" || rec.From != "10.0.0.5:4000" {
		t.Errorf("latest = %+v", rec)
	}

	if err := r.Handle(frame[:30], "x", time.Now()); !errors.Is(err, telemetry.ErrPacketSize) {
		t.Errorf("short frame: %v", err)
	}
	bad := telemetry.Encode(telemetry.Packet{Sync: 1}, telemetry.VariantEnvironment, binary.LittleEndian)
	if err := r.Handle(bad, "x", time.Now()); !errors.Is(err, telemetry.ErrSync) {
		t.Errorf("bad sync: %v", err)
	}
	if packets, dropped := r.Stats(); packets != 1 || dropped != 2 {
		t.Errorf("stats = %d/%d", packets, dropped)
	}
	if rec, _ := r.Latest(); rec.Timestamp != 9 {
		t.Error("invalid frame replaced latest packet")
	}
}

func getJSON(t *testing.T, url string, v any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: %s", url, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatal(err)
	}
}

func TestReceiverAPI(t *testing.T) {
	r := NewReceiver(binary.LittleEndian)
	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	var empty struct {
		Data *Received `json:"data"`
	}
	getJSON(t, srv.URL+"/api/telemetry/latest", &empty)
	if empty.Data != nil {
		t.Errorf("latest before any packet = %+v", empty.Data)
	}
	var noStats struct {
		Stats *Summary `json:"stats"`
	}
	getJSON(t, srv.URL+"/api/telemetry/stats", &noStats)
	if noStats.Stats != nil {
		t.Error("stats before any packet")
	}

	for ts := uint64(11); ts <= 12; ts++ {
		p := samplePacket(ts)
		p.Temperature = float32(ts) * 2
		frame := telemetry.Encode(p, telemetry.VariantEnvironment, binary.LittleEndian)
		if err := r.Handle(frame, "node", time.Unix(int64(ts), 0)); err != nil {
			t.Fatal(err)
		}
	}

	var latest struct {
		Data Received `json:"data"`
	}
	getJSON(t, srv.URL+"/api/telemetry/latest", &latest)
	if latest.Data.Timestamp != 12 || latest.Data.Variant != "environment" {
		t.Errorf("latest = %+v", latest.Data)
	}

	var all struct {
		Data []Received `json:"data"`
	}
	getJSON(t, srv.URL+"/api/telemetry", &all)
	if len(all.Data) != 2 || all.Data[0].Timestamp != 11 {
		t.Errorf("history = %+v", all.Data)
	}

	var stats struct {
		Stats Summary `json:"stats"`
	}
	getJSON(t, srv.URL+"/api/telemetry/stats", &stats)
	if s := stats.Stats; s.TotalPackets != 2 || s.Temperature != (Span{Min: 22, Max: 24, Avg: 23}) {
		t.Errorf("stats = %+v", s)
	}
}

func TestReceiverDropsNonFiniteFrames(t *testing.T) {
	r := NewReceiver(binary.LittleEndian)
	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	bad := []float32{float32(math.NaN()), float32(math.Inf(1)), float32(math.Inf(-1))}
	for i, x := range bad {
		good := telemetry.Encode(samplePacket(uint64(i)), telemetry.VariantFull, binary.LittleEndian)
		if err := r.Handle(good, "node", time.Unix(int64(i), 0)); err != nil {
			t.Fatal(err)
		}
		p := samplePacket(100)
		p.GyroY = x
		frame := telemetry.Encode(p, telemetry.VariantFull, binary.LittleEndian)
		if err := r.Handle(frame, "node", time.Now()); !errors.Is(err, ErrNonFinite) {
			t.Errorf("%v frame: got %v, want ErrNonFinite", x, err)
		}
	}
	if packets, dropped := r.Stats(); packets != 3 || dropped != 3 {
		t.Errorf("stats = %d/%d", packets, dropped)
	}

	var all struct {
		Data []Received `json:"data"`
	}
	getJSON(t, srv.URL+"/api/telemetry", &all)
	if len(all.Data) != 3 {
		t.Errorf("history has %d records, want 3", len(all.Data))
	}
	var stats struct {
		Stats *Summary `json:"stats"`
	}
	getJSON(t, srv.URL+"/api/telemetry/stats", &stats)
	if stats.Stats == nil || stats.Stats.TotalPackets != 3 {
		t.Errorf("stats = %+v", stats.Stats)
	}
}

func TestReceiverHistoryBounded(t *testing.T) {
	r := NewReceiver(binary.LittleEndian)
	for ts := uint64(1); ts <= HistorySize+5; ts++ {
		frame := telemetry.Encode(samplePacket(ts), telemetry.VariantEnvironment, binary.LittleEndian)
		if err := r.Handle(frame, "node", time.Now()); err != nil {
			t.Fatal(err)
		}
	}
	h := r.History(0)
	if len(h) != HistorySize || h[0].Timestamp != 6 || h[len(h)-1].Timestamp != HistorySize+5 {
		t.Errorf("history len %d, first %d", len(h), h[0].Timestamp)
	}
	if last := r.History(3); len(last) != 3 || last[2].Timestamp != HistorySize+5 {
		t.Errorf("History(3) = %+v", last)
	}
}

type wsEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func TestReceiverWebSocketStream(t *testing.T) {
	r := NewReceiver(binary.LittleEndian)
	first := telemetry.Encode(samplePacket(1), telemetry.VariantEnvironment, binary.LittleEndian)
	if err := r.Handle(first, "node", time.Unix(1, 0)); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var msg wsEnvelope
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatal(err)
	}
	var backlog []Received
	if err := json.Unmarshal(msg.Data, &backlog); err != nil || msg.Type != "initial_data" || len(backlog) != 1 {
		t.Fatalf("initial message = %s %s (%v)", msg.Type, msg.Data, err)
	}

	// the backlog is written after subscribing, so this packet is streamed
	frame := telemetry.Encode(samplePacket(12), telemetry.VariantEnvironment, binary.LittleEndian)
	if err := r.Handle(frame, "node", time.Unix(12, 0)); err != nil {
		t.Fatal(err)
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatal(err)
	}
	var got Received
	if err := json.Unmarshal(msg.Data, &got); err != nil || msg.Type != "telemetry" || got.Timestamp != 12 {
		t.Errorf("streamed %s %s (%v)", msg.Type, msg.Data, err)
	}
}

func TestReceiverServeUDP(t *testing.T) {
	r := NewReceiver(binary.BigEndian)
	if err := r.Listen("127.0.0.1:0"); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Serve(ctx) }()

	sink, err := transport.NewUDPSink(r.Addr().(*net.UDPAddr).String())
	if err != nil {
		t.Fatal(err)
	}
	defer sink.Close()
	p := samplePacket(13)
	p.Status = telemetry.StatusEnvironment | telemetry.StatusMotion
	if err := sink.Publish(p, telemetry.Encode(p, telemetry.VariantFull, binary.BigEndian)); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if rec, ok := r.Latest(); ok {
			if rec.Packet != p || rec.Variant != "full" {
				t.Errorf("received %+v", rec)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("datagram never received")
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not stop")
	}
}
