// Package controller runs the trigger coordinator: the single loop that keeps
// detection sources in step with the hardware, arbitrates trigger requests and
// drives the fire output.
package controller

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wakefire/wakefire/internal/errors"
	"github.com/wakefire/wakefire/internal/gpio"
	"github.com/wakefire/wakefire/internal/logger"
	"github.com/wakefire/wakefire/internal/observability/metrics"
	"github.com/wakefire/wakefire/internal/trigger"
)

// Defaults of the coordinator timing.
const (
	DefaultMinRefireInterval = 2 * time.Second
	DefaultPollInterval      = 200 * time.Millisecond
	DefaultPulseDuration     = 500 * time.Millisecond
	DefaultButtonDebounce    = 100 * time.Millisecond
)

// Registry is the set of detection sources the coordinator polls.
type Registry interface {
	Refresh(ctx context.Context)
	Len() int
	// Each visits sources in registry order.
	Each(fn func(name string, pending *trigger.Pending))
	Close() error
}

// Config holds the coordinator collaborators and timing.
type Config struct {
	Registry Registry
	Actuator gpio.Actuator
	Pins     gpio.Pins

	MinRefireInterval time.Duration
	PollInterval      time.Duration
	PulseDuration     time.Duration
	ButtonDebounce    time.Duration

	// ShutdownCommand runs after the coordinator stopped because the
	// shutdown button was pressed. Empty disables it.
	ShutdownCommand string
	RunCommand      CommandRunner

	Clock   Clock
	Log     logger.Logger
	Metrics *metrics.EngineMetrics
}

func (cfg *Config) applyDefaults() {
	if cfg.MinRefireInterval <= 0 {
		cfg.MinRefireInterval = DefaultMinRefireInterval
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.PulseDuration <= 0 {
		cfg.PulseDuration = DefaultPulseDuration
	}
	if cfg.ButtonDebounce <= 0 {
		cfg.ButtonDebounce = DefaultButtonDebounce
	}
	if cfg.RunCommand == nil {
		cfg.RunCommand = ShellRunner
	}
	if cfg.Clock == nil {
		cfg.Clock = systemClock{}
	}
	if cfg.Log == nil {
		cfg.Log = logger.Global().Module("controller")
	}
}

// Coordinator owns the registry and the actuator. Only its loop writes
// outputs; button callbacks only record requests.
type Coordinator struct {
	cfg   Config
	clock Clock
	log   logger.Logger

	state          atomic.Int32
	buttonShutdown atomic.Bool
	manual         trigger.Pending

	cancelMu sync.Mutex
	cancel   context.CancelFunc

	// Loop-owned state.
	debounce   *trigger.Debouncer
	micLevel   gpio.Level
	micWritten bool
	tickStart  time.Time

	releaseOnce sync.Once
}

// New returns an idle coordinator.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Registry == nil || cfg.Actuator == nil {
		return nil, errors.Newf("coordinator requires a registry and an actuator").
			Component("controller").
			Category(errors.CategoryConfiguration).
			Build()
	}
	cfg.applyDefaults()

	c := &Coordinator{
		cfg:      cfg,
		clock:    cfg.Clock,
		log:      cfg.Log,
		debounce: trigger.NewDebouncer(cfg.MinRefireInterval),
	}
	c.setState(StateIdle)
	return c, nil
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

func (c *Coordinator) setState(s State) {
	c.state.Store(int32(s))
	c.cfg.Metrics.SetCoordinatorState(int(s))
}

// RequestFire records a manual trigger. It is ignored unless the coordinator
// is running and never blocks.
func (c *Coordinator) RequestFire() {
	if c.State() != StateRunning {
		c.log.Debug("manual trigger ignored", logger.String("state", c.State().String()))
		return
	}
	if _, pending := c.manual.Peek(); pending {
		c.log.Debug("manual trigger replaces unconsumed request")
	}
	c.manual.Set(c.clock.Now())
	c.log.Info("manual trigger requested")
}

// RequestShutdown moves a running coordinator to STOPPING. It never blocks;
// Run completes the teardown.
func (c *Coordinator) RequestShutdown() {
	if !c.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return
	}
	c.cfg.Metrics.SetCoordinatorState(int(StateStopping))
	c.log.Info("shutdown requested")

	c.cancelMu.Lock()
	cancel := c.cancel
	c.cancelMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// ShutdownByButton reports whether the shutdown button stopped the coordinator.
func (c *Coordinator) ShutdownByButton() bool {
	return c.buttonShutdown.Load()
}

func (c *Coordinator) onShutdownButton() {
	if c.State() != StateRunning {
		return
	}
	c.buttonShutdown.Store(true)
	c.RequestShutdown()
}

// Run drives the loop until ctx is cancelled, the shutdown button is pressed
// or a tick fails. Every source is then stopped, outputs are switched off and
// the actuator is released. A tick failure is returned as a fatal-loop error.
func (c *Coordinator) Run(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return errors.Newf("coordinator already started (state %s)", c.State()).
			Component("controller").
			Category(errors.CategoryState).
			Build()
	}
	c.cfg.Metrics.SetCoordinatorState(int(StateRunning))

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.cancelMu.Lock()
	c.cancel = cancel
	c.cancelMu.Unlock()

	loopErr := c.start()
	if loopErr == nil {
		c.log.Info("coordinator running",
			logger.Duration("poll_interval", c.cfg.PollInterval),
			logger.Duration("min_refire_interval", c.cfg.MinRefireInterval))
		loopErr = c.loop(loopCtx)
	}

	c.setState(StateStopping)
	c.stop()
	c.setState(StateStopped)
	c.log.Info("coordinator stopped")

	c.runShutdownCommand()
	return loopErr
}

func (c *Coordinator) start() error {
	pins := c.cfg.Pins
	if err := c.cfg.Actuator.RegisterEdgeCallback(pins.FireButton, gpio.EdgeFalling, c.RequestFire, c.cfg.ButtonDebounce); err != nil {
		return c.fatal(err, "register_fire_button")
	}
	if err := c.cfg.Actuator.RegisterEdgeCallback(pins.ShutdownButton, gpio.EdgeFalling, c.onShutdownButton, c.cfg.ButtonDebounce); err != nil {
		return c.fatal(err, "register_shutdown_button")
	}
	if err := c.cfg.Actuator.SetOutput(pins.RunningLED, gpio.High); err != nil {
		return c.fatal(err, "running_indicator")
	}
	return nil
}

func (c *Coordinator) loop(ctx context.Context) error {
	for ctx.Err() == nil && c.State() == StateRunning {
		if err := c.safeTick(ctx); err != nil {
			c.log.Error("coordinator loop failed", logger.Error(err))
			return err
		}

		select {
		case <-ctx.Done():
		case <-c.clock.After(c.cfg.PollInterval):
		}
	}
	return nil
}

// safeTick runs one tick and turns a panic into a fatal-loop error.
func (c *Coordinator) safeTick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = c.fatal(fmt.Errorf("panic: %v", r), "tick")
		}
	}()
	return c.tick(ctx)
}

// tick refreshes the registry, updates the microphone indicator and fires
// at most once. Nothing fires once a shutdown has begun.
func (c *Coordinator) tick(ctx context.Context) error {
	c.tickStart = time.Now()
	defer func() {
		c.cfg.Metrics.ObserveTick(time.Since(c.tickStart).Seconds())
		c.tickStart = time.Time{}
	}()

	c.cfg.Registry.Refresh(ctx)
	if c.stopping(ctx) {
		c.discardRequests()
		return nil
	}

	mic := gpio.Low
	if c.cfg.Registry.Len() > 0 {
		mic = gpio.High
	}
	if !c.micWritten || mic != c.micLevel {
		if err := c.cfg.Actuator.SetOutput(c.cfg.Pins.MicLED, mic); err != nil {
			return c.fatal(err, "microphone_indicator")
		}
		c.micLevel = mic
		c.micWritten = true
	}

	kind, origin, ok := c.arbitrate()
	if !ok {
		return nil
	}
	if c.stopping(ctx) {
		return nil
	}
	return c.fire(kind, origin)
}

func (c *Coordinator) stopping(ctx context.Context) bool {
	return ctx.Err() != nil || c.State() != StateRunning
}

// discardRequests drops the manual and every source request unconsumed.
func (c *Coordinator) discardRequests() {
	c.manual.Clear()
	c.cfg.Registry.Each(func(_ string, p *trigger.Pending) {
		p.Clear()
	})
}

// arbitrate takes every pending request and picks at most one winner:
// the manual trigger first, then sources in registry order. Requests inside
// the refire window, and all requests after the winner, are dropped.
func (c *Coordinator) arbitrate() (kind, origin string, ok bool) {
	if at, pending := c.manual.Take(); pending {
		if c.debounce.Allow(at) {
			kind, origin, ok = metrics.TriggerManual, "button", true
		} else {
			c.drop(metrics.TriggerManual, "button", at)
		}
	}

	c.cfg.Registry.Each(func(name string, p *trigger.Pending) {
		at, pending := p.Take()
		if !pending {
			return
		}
		if !ok && c.debounce.Allow(at) {
			kind, origin, ok = metrics.TriggerSource, name, true
			return
		}
		c.drop(metrics.TriggerSource, name, at)
	})
	return kind, origin, ok
}

func (c *Coordinator) drop(kind, origin string, at time.Time) {
	c.cfg.Metrics.RequestDropped(kind)
	c.log.Debug("trigger request dropped",
		logger.String("trigger", kind),
		logger.String("origin", origin),
		logger.Time("requested_at", at))
}

// fire records the fire time first, then holds the fire output and its
// indicator high for the pulse duration.
func (c *Coordinator) fire(kind, origin string) error {
	now := c.clock.Now()
	fields := []logger.Field{
		logger.String("trigger", kind),
		logger.String("origin", origin),
		logger.Duration("pulse", c.cfg.PulseDuration),
	}
	if last, fired := c.debounce.LastFire(); fired {
		fields = append(fields, logger.Duration("since_last_fire", now.Sub(last)))
	}
	c.debounce.Record(now)
	c.cfg.Metrics.Fired(kind)
	c.log.Info("fire", fields...)

	pins := c.cfg.Pins
	var errs []error
	if err := c.cfg.Actuator.SetOutput(pins.Fire, gpio.High); err != nil {
		errs = append(errs, err)
	}
	if err := c.cfg.Actuator.SetOutput(pins.FireLED, gpio.High); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		c.clock.Sleep(c.cfg.PulseDuration)
	}
	if err := c.cfg.Actuator.SetOutput(pins.Fire, gpio.Low); err != nil {
		errs = append(errs, err)
	}
	if err := c.cfg.Actuator.SetOutput(pins.FireLED, gpio.Low); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return c.fatal(errors.Join(errs...), "fire")
	}
	return nil
}

// stop tears down every source, switches outputs off and releases the
// actuator once.
func (c *Coordinator) stop() {
	if err := c.cfg.Registry.Close(); err != nil {
		c.log.Warn("registry close failed", logger.Error(err))
	}

	for _, pin := range c.cfg.Pins.Outputs() {
		if err := c.cfg.Actuator.SetOutput(pin, gpio.Low); err != nil {
			c.log.Debug("output not switched off", logger.Int("pin", pin), logger.Error(err))
		}
	}

	c.releaseOnce.Do(func() {
		if err := c.cfg.Actuator.ReleaseAll(); err != nil {
			c.log.Warn("actuator release failed", logger.Error(err))
		}
	})
}

// fatal builds a fatal-loop error. Failures inside a tick carry the time
// spent in that tick.
func (c *Coordinator) fatal(err error, op string) error {
	b := errors.New(err).
		Component("controller").
		Category(errors.CategoryFatalLoop)
	if c.tickStart.IsZero() {
		b = b.Context("operation", op)
	} else {
		b = b.Timing(op, time.Since(c.tickStart))
	}
	return b.Report().Build()
}
