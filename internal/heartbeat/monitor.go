package heartbeat

import "time"

// Monitor tracks the pulses of one periodic task.
type Monitor struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Enabled  bool          `json:"enabled"`
	Timeout  time.Duration `json:"timeout"`
	LastBeat *time.Time    `json:"last_beat"`
}

// ExpiresAt returns LastBeat + Timeout. A monitor that never beat has no
// expiry time and reports ok == false.
func (m Monitor) ExpiresAt() (time.Time, bool) {
	if m.LastBeat == nil {
		return time.Time{}, false
	}
	return m.LastBeat.Add(m.Timeout), true
}

// IsExpired reports whether now is past the expiry time. A monitor without
// any beat counts as expired.
func (m Monitor) IsExpired(now time.Time) bool {
	expiresAt, ok := m.ExpiresAt()
	if !ok {
		return true
	}
	return now.After(expiresAt)
}

// RemainingTime is negative once the monitor expired.
func (m Monitor) RemainingTime(now time.Time) time.Duration {
	expiresAt, ok := m.ExpiresAt()
	if !ok {
		return 0
	}
	return expiresAt.Sub(now)
}

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}
