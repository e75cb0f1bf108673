package controller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wakefire/wakefire/internal/errors"
	"github.com/wakefire/wakefire/internal/gpio"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type recordingRunner struct {
	mu       sync.Mutex
	commands []string
}

func (r *recordingRunner) run(_ context.Context, command string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, command)
	return nil
}

func (r *recordingRunner) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.commands...)
}

type runFixture struct {
	coord    *Coordinator
	registry *fakeRegistry
	actuator *gpio.Simulated
	runner   *recordingRunner
	pins     gpio.Pins
	done     chan error
}

func startRun(t *testing.T, ctx context.Context, registry *fakeRegistry) *runFixture {
	t.Helper()

	f := &runFixture{
		registry: registry,
		actuator: gpio.NewSimulated(quietLogger()),
		runner:   &recordingRunner{},
		pins:     gpio.DefaultPins(),
		done:     make(chan error, 1),
	}
	var err error
	f.coord, err = New(Config{
		Registry:        registry,
		Actuator:        f.actuator,
		Pins:            f.pins,
		PollInterval:    5 * time.Millisecond,
		PulseDuration:   time.Millisecond,
		ShutdownCommand: "shutdown -h now",
		RunCommand:      f.runner.run,
		Log:             quietLogger(),
	})
	require.NoError(t, err)

	go func() { f.done <- f.coord.Run(ctx) }()
	require.Eventually(t, func() bool { return f.coord.State() != StateIdle }, waitFor, tick)
	return f
}

func (f *runFixture) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-f.done:
		return err
	case <-time.After(waitFor):
		t.Fatal("coordinator did not stop")
		return nil
	}
}

func (f *runFixture) fired() bool {
	for _, w := range f.actuator.History() {
		if w.Pin == f.pins.Fire && w.Level == gpio.High {
			return true
		}
	}
	return false
}

func TestRunShutdownButton(t *testing.T) {
	t.Parallel()

	f := startRun(t, context.Background(), newFakeRegistry("USB Mic"))

	// The running indicator goes high once both buttons are registered.
	require.Eventually(t, func() bool { return f.actuator.Level(f.pins.RunningLED) == gpio.High }, waitFor, tick)
	require.True(t, f.actuator.Trigger(f.pins.FireButton))
	require.Eventually(t, f.fired, waitFor, tick)
	require.Eventually(t, func() bool { return f.actuator.Level(f.pins.MicLED) == gpio.High }, waitFor, tick)

	require.True(t, f.actuator.Trigger(f.pins.ShutdownButton))
	require.NoError(t, f.wait(t))

	assert.Equal(t, StateStopped, f.coord.State())
	assert.True(t, f.coord.ShutdownByButton())
	assert.Equal(t, 1, f.registry.closeCount())
	assert.Zero(t, f.registry.Len(), "all sources retired")
	assert.Equal(t, 1, f.actuator.ReleaseCount())
	for _, pin := range f.pins.Outputs() {
		assert.Equal(t, gpio.Low, f.actuator.Level(pin), "pin %d", pin)
	}
	assert.Equal(t, []string{"shutdown -h now"}, f.runner.calls())

	f.coord.RequestFire()
	_, pending := f.coord.manual.Peek()
	assert.False(t, pending, "manual trigger after shutdown is ignored")
}

func TestRunContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	f := startRun(t, ctx, newFakeRegistry())

	cancel()
	require.NoError(t, f.wait(t))

	assert.Equal(t, StateStopped, f.coord.State())
	assert.False(t, f.coord.ShutdownByButton())
	assert.Empty(t, f.runner.calls(), "shutdown command only follows the button")
	assert.Equal(t, 1, f.actuator.ReleaseCount())
}

func TestRequestShutdownIgnoresLateManualTrigger(t *testing.T) {
	t.Parallel()

	f := startRun(t, context.Background(), newFakeRegistry())

	f.coord.RequestShutdown()
	f.coord.RequestFire()
	require.NoError(t, f.wait(t))

	assert.False(t, f.fired())
	f.coord.RequestShutdown()
	assert.Equal(t, StateStopped, f.coord.State())
}

func TestRunPanicIsFatal(t *testing.T) {
	t.Parallel()

	reg := newFakeRegistry()
	reg.panicOnRefresh = true
	f := startRun(t, context.Background(), reg)

	err := f.wait(t)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrFatalLoop)
	assert.Equal(t, StateStopped, f.coord.State())
	assert.Equal(t, 1, reg.closeCount())
	assert.Equal(t, 1, f.actuator.ReleaseCount())
}

func TestRunTwice(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	f := startRun(t, ctx, newFakeRegistry())

	err := f.coord.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryState))

	cancel()
	require.NoError(t, f.wait(t))
}
