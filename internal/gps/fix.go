// Package gps turns NMEA RMC sentences into position fixes and keeps the
// most recent one for the acquisition loop.
package gps

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	nmea "github.com/adrianmo/go-nmea"
)

// ErrNotRMC is returned by ParseSentence for any other sentence type.
var ErrNotRMC = errors.New("gps: not an RMC sentence")

// Fix represents a single GPS fix suitable for JSON and MQTT.
type Fix struct {
	Time       string  `json:"time"`        // e.g. "12:34:56.0000"
	Date       string  `json:"date"`        // dd/mm/yy as reported
	Latitude   float64 `json:"lat"`         // decimal degrees
	Longitude  float64 `json:"lon"`         // decimal degrees
	SpeedKnots float64 `json:"speed_knots"` // speed over ground
	CourseDeg  float64 `json:"course_deg"`  // course over ground
	Validity   string  `json:"validity"`    // "A" (valid) / "V" (void)
}

// Valid reports whether the receiver marked the fix active.
func (f Fix) Valid() bool { return f.Validity == nmea.ValidRMC }

// ParseSentence decodes one NMEA line. Only RMC is accepted.
func ParseSentence(line string) (Fix, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return Fix{}, fmt.Errorf("gps: not an NMEA sentence: %q", line)
	}
	s, err := nmea.Parse(line)
	if err != nil {
		return Fix{}, fmt.Errorf("gps: %w", err)
	}
	m, ok := s.(nmea.RMC)
	if !ok {
		return Fix{}, fmt.Errorf("%w: %s", ErrNotRMC, s.DataType())
	}
	return Fix{
		Time:       m.Time.String(),
		Date:       m.Date.String(),
		Latitude:   m.Latitude,
		Longitude:  m.Longitude,
		SpeedKnots: m.Speed,
		CourseDeg:  m.Course,
		Validity:   m.Validity,
	}, nil
}

// Tracker holds the latest valid fix. It is safe for concurrent use; the
// serial reader updates it while the acquisition loop reads it.
type Tracker struct {
	maxAge time.Duration

	mu   sync.RWMutex
	fix  Fix
	seen time.Time
}

// NewTracker returns a tracker whose fixes expire after maxAge. Zero means
// fixes never expire.
func NewTracker(maxAge time.Duration) *Tracker {
	return &Tracker{maxAge: maxAge}
}

// Update records f if it is valid. Void fixes are dropped so a receiver
// losing lock does not overwrite the last good position.
func (t *Tracker) Update(f Fix, at time.Time) bool {
	if !f.Valid() {
		return false
	}
	t.mu.Lock()
	t.fix, t.seen = f, at
	t.mu.Unlock()
	return true
}

// Latest returns the last valid fix if it is fresh at now.
func (t *Tracker) Latest(now time.Time) (Fix, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.seen.IsZero() {
		return Fix{}, false
	}
	if t.maxAge > 0 && now.Sub(t.seen) > t.maxAge {
		return Fix{}, false
	}
	return t.fix, true
}
