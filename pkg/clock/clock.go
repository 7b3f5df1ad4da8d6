// Package clock hands out server timestamps together with a strictly
// increasing sequence number, so records created within the same clock tick
// still have a total order.
package clock

import (
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func System() Clock { return systemClock{} }

// Sequencer stamps records. Timestamps never go backwards even if the wall
// clock does, and sequences are unique within the process.
type Sequencer struct {
	mu    sync.Mutex
	clock Clock
	last  time.Time
	seq   int64
}

func NewSequencer(c Clock) *Sequencer {
	if c == nil {
		c = System()
	}
	return &Sequencer{clock: c}
}

// Next returns a UTC timestamp that is not before any previous one and a
// sequence strictly greater than any previous one.
func (s *Sequencer) Next() (time.Time, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now().UTC().Truncate(time.Millisecond)
	if now.Before(s.last) {
		now = s.last
	}
	s.last = now

	seq := now.UnixNano()
	if seq <= s.seq {
		seq = s.seq + 1
	}
	s.seq = seq

	return now, seq
}

// Now reads the underlying clock.
func (s *Sequencer) Now() time.Time {
	return s.clock.Now()
}

// Fixed is a settable clock for tests.
type Fixed struct {
	mu sync.Mutex
	t  time.Time
}

func NewFixed(t time.Time) *Fixed {
	return &Fixed{t: t}
}

func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = t
}

func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}
