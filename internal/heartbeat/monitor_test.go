package heartbeat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMonitor_Expiry(t *testing.T) {
	beat := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := Monitor{Name: "job", Timeout: time.Hour, LastBeat: &beat}

	expiresAt, ok := m.ExpiresAt()
	assert.True(t, ok)
	assert.Equal(t, beat.Add(time.Hour), expiresAt)

	assert.False(t, m.IsExpired(beat.Add(30*time.Minute)))
	assert.False(t, m.IsExpired(beat.Add(time.Hour)))
	assert.True(t, m.IsExpired(beat.Add(time.Hour+time.Nanosecond)))

	assert.Equal(t, 30*time.Minute, m.RemainingTime(beat.Add(30*time.Minute)))
	assert.Equal(t, -time.Minute, m.RemainingTime(beat.Add(61*time.Minute)))
}

func TestMonitor_NeverBeat(t *testing.T) {
	m := Monitor{Name: "job", Timeout: time.Hour}

	_, ok := m.ExpiresAt()
	assert.False(t, ok)
	assert.True(t, m.IsExpired(time.Now()))
	assert.Zero(t, m.RemainingTime(time.Now()))
}
