package risk

import "time"

// Clock abstracts wall-clock reads so detector windows and snapshot
// timestamps can be pinned in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// MockClock returns a fixed instant until advanced.
type MockClock struct {
	CurrentTime time.Time
}

func (m *MockClock) Now() time.Time { return m.CurrentTime }

func (m *MockClock) Advance(d time.Duration) {
	m.CurrentTime = m.CurrentTime.Add(d)
}

var clock Clock = systemClock{}

// Now reads the active clock. Assessment and snapshot timestamps all
// come from here, which is what lets tests pin time with SetClock.
func Now() time.Time {
	return clock.Now()
}

// SetClock swaps the active clock. Tests that call it must defer
// ResetClock so later tests see real time again.
func SetClock(c Clock) {
	clock = c
}

// ResetClock restores the system clock.
func ResetClock() {
	clock = systemClock{}
}
