package trigger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDebouncerSequence(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	d := NewDebouncer(2 * time.Second)

	_, fired := d.LastFire()
	assert.False(t, fired)

	assert.True(t, d.Allow(t0), "first request always fires")
	d.Record(t0)

	assert.False(t, d.Allow(t0.Add(time.Second)))
	assert.True(t, d.Allow(t0.Add(2100*time.Millisecond)))
	assert.True(t, d.Allow(t0.Add(2*time.Second)), "boundary is inclusive")
}

func TestDebouncerRequestBeforeLastFire(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2024, 5, 1, 12, 0, 10, 0, time.UTC)
	d := NewDebouncer(2 * time.Second)
	d.Record(t0)

	assert.False(t, d.Allow(t0.Add(-500*time.Millisecond)))
	assert.True(t, d.Allow(t0.Add(-3*time.Second)))
}
