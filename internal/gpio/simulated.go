package gpio

import (
	"sync"
	"time"

	"github.com/wakefire/wakefire/internal/errors"
	"github.com/wakefire/wakefire/internal/logger"
)

// Write is one recorded SetOutput call.
type Write struct {
	Pin   int
	Level Level
	At    time.Time
}

// Simulated is an in-memory Actuator. It backs --dry-run and tests.
type Simulated struct {
	log logger.Logger

	mu           sync.Mutex
	levels       map[int]Level
	handlers     map[int]func()
	history      []Write
	releaseCount int
	failPins     map[int]error
}

// NewSimulated returns a Simulated actuator with every pin low.
func NewSimulated(log logger.Logger) *Simulated {
	if log == nil {
		log = logger.Global().Module("gpio")
	}
	return &Simulated{
		log:      log.With(logger.Bool("simulated", true)),
		levels:   make(map[int]Level),
		handlers: make(map[int]func()),
		failPins: make(map[int]error),
	}
}

func (s *Simulated) SetOutput(pin int, level Level) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err, ok := s.failPins[pin]; ok {
		return errors.New(err).
			Component("gpio").
			Category(errors.CategoryActuator).
			Context("pin", pin).
			Build()
	}
	s.levels[pin] = level
	s.history = append(s.history, Write{Pin: pin, Level: level, At: time.Now()})
	s.log.Debug("output", logger.Int("pin", pin), logger.String("level", level.String()))
	return nil
}

func (s *Simulated) RegisterEdgeCallback(pin int, edge Edge, handler func(), debounce time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.handlers[pin]; exists {
		return errors.Newf("pin %d: callback already registered", pin).
			Component("gpio").
			Category(errors.CategoryState).
			Build()
	}
	s.handlers[pin] = handler
	s.log.Debug("edge callback registered",
		logger.Int("pin", pin),
		logger.String("edge", edge.String()),
		logger.Duration("debounce", debounce))
	return nil
}

func (s *Simulated) ReleaseAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.releaseCount++
	clear(s.handlers)
	return nil
}

// Trigger invokes the handler registered on pin, as if the button was
// pressed. It reports whether a handler was registered.
func (s *Simulated) Trigger(pin int) bool {
	s.mu.Lock()
	h, ok := s.handlers[pin]
	s.mu.Unlock()

	if ok {
		h()
	}
	return ok
}

// Level returns the last level written to pin.
func (s *Simulated) Level(pin int) Level {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.levels[pin]
}

// History returns every SetOutput call in order.
func (s *Simulated) History() []Write {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Write(nil), s.history...)
}

// ReleaseCount returns how many times ReleaseAll was called.
func (s *Simulated) ReleaseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releaseCount
}

// FailOutput makes SetOutput on pin return err. Pass nil to clear.
func (s *Simulated) FailOutput(pin int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failPins, pin)
		return
	}
	s.failPins[pin] = err
}
