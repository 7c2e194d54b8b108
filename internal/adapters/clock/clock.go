package clock

import (
	"sync"
	"time"
)

// System lee el reloj del host en UTC.
type System struct{}

func (System) Now() time.Time { return time.Now().UTC() }

// Manual es un reloj controlado a mano. Solo avanza.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

func NewManual(start time.Time) *Manual {
	return &Manual{now: start.UTC()}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance mueve el reloj hacia adelante; duraciones negativas se ignoran.
func (m *Manual) Advance(d time.Duration) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d > 0 {
		m.now = m.now.Add(d)
	}
	return m.now
}

// Set fija el reloj en t si t no es anterior al instante actual.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.After(m.now) {
		m.now = t.UTC()
	}
}
