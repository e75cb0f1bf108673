package gpio

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"

	"github.com/wakefire/wakefire/internal/errors"
	"github.com/wakefire/wakefire/internal/logger"
)

const consumerName = "wakefire"

// Chip is an Actuator on a Linux GPIO character device.
type Chip struct {
	name string
	log  logger.Logger

	mu       sync.Mutex
	outputs  map[int]*gpiocdev.Line
	inputs   map[int]*gpiocdev.Line
	released bool
}

// NewChip returns an Actuator on the named chip, e.g. "gpiochip0". Lines are
// requested on first use.
func NewChip(name string, log logger.Logger) *Chip {
	if log == nil {
		log = logger.Global().Module("gpio")
	}
	return &Chip{
		name:    name,
		log:     log.With(logger.String("chip", name)),
		outputs: make(map[int]*gpiocdev.Line),
		inputs:  make(map[int]*gpiocdev.Line),
	}
}

// SetOutput drives pin, requesting it as an output on first use.
func (c *Chip) SetOutput(pin int, level Level) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return c.stateError(pin, "set output after release")
	}

	line, ok := c.outputs[pin]
	if !ok {
		var err error
		line, err = gpiocdev.RequestLine(c.name, pin,
			gpiocdev.AsOutput(int(level)),
			gpiocdev.WithConsumer(consumerName))
		if err != nil {
			return c.lineError(err, pin, "request_output")
		}
		c.outputs[pin] = line
		return nil
	}

	if err := line.SetValue(int(level)); err != nil {
		return c.lineError(err, pin, "set_value")
	}
	return nil
}

// RegisterEdgeCallback requests pin as a pulled-up input and calls handler
// on every matching edge after kernel debouncing.
func (c *Chip) RegisterEdgeCallback(pin int, edge Edge, handler func(), debounce time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return c.stateError(pin, "register callback after release")
	}
	if _, exists := c.inputs[pin]; exists {
		return c.stateError(pin, "callback already registered")
	}

	opts := []gpiocdev.LineReqOption{
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithConsumer(consumerName),
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			c.log.Trace("edge event",
				logger.Int("pin", evt.Offset),
				logger.Int("seqno", int(evt.Seqno)))
			handler()
		}),
	}
	switch edge {
	case EdgeRising:
		opts = append(opts, gpiocdev.WithRisingEdge)
	case EdgeBoth:
		opts = append(opts, gpiocdev.WithBothEdges)
	default:
		opts = append(opts, gpiocdev.WithFallingEdge)
	}
	if debounce > 0 {
		opts = append(opts, gpiocdev.WithDebounce(debounce))
	}

	line, err := gpiocdev.RequestLine(c.name, pin, opts...)
	if err != nil {
		return c.lineError(err, pin, "request_input")
	}
	c.inputs[pin] = line
	c.log.Debug("edge callback registered",
		logger.Int("pin", pin),
		logger.String("edge", edge.String()),
		logger.Duration("debounce", debounce))
	return nil
}

// ReleaseAll closes every requested line. Outputs are closed as requested;
// the kernel leaves their last value in place.
func (c *Chip) ReleaseAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return nil
	}
	c.released = true

	var errs []error
	for pin, line := range c.inputs {
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("input %d: %w", pin, err))
		}
	}
	for pin, line := range c.outputs {
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("output %d: %w", pin, err))
		}
	}
	clear(c.inputs)
	clear(c.outputs)

	if len(errs) > 0 {
		return errors.New(errors.Join(errs...)).
			Component("gpio").
			Category(errors.CategoryResourceRelease).
			Context("chip", c.name).
			Build()
	}
	return nil
}

func (c *Chip) lineError(err error, pin int, op string) error {
	return errors.New(err).
		Component("gpio").
		Category(errors.CategoryActuator).
		Context("chip", c.name).
		Context("pin", pin).
		Context("operation", op).
		Build()
}

func (c *Chip) stateError(pin int, msg string) error {
	return errors.Newf("pin %d: %s", pin, msg).
		Component("gpio").
		Category(errors.CategoryState).
		Context("chip", c.name).
		Build()
}
