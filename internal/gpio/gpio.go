// Package gpio drives the digital outputs and reads the buttons of the
// trigger rig.
package gpio

import "time"

// Level is a logical output level.
type Level int

const (
	Low Level = iota
	High
)

func (l Level) String() string {
	if l == High {
		return "high"
	}
	return "low"
}

// Edge selects which input transitions invoke a callback.
type Edge int

const (
	EdgeFalling Edge = iota
	EdgeRising
	EdgeBoth
)

func (e Edge) String() string {
	switch e {
	case EdgeRising:
		return "rising"
	case EdgeBoth:
		return "both"
	default:
		return "falling"
	}
}

// Actuator is the digital I/O used by the coordinator. Edge handlers run on
// the implementation's event goroutine and must not block.
type Actuator interface {
	SetOutput(pin int, level Level) error
	RegisterEdgeCallback(pin int, edge Edge, handler func(), debounce time.Duration) error
	// ReleaseAll frees every line. It is safe to call more than once.
	ReleaseAll() error
}

// Pins maps the rig's functions to line offsets (BCM numbering on a
// Raspberry Pi).
type Pins struct {
	Fire           int `yaml:"fire" mapstructure:"fire" json:"fire"`
	FireLED        int `yaml:"fireled" mapstructure:"fireled" json:"fireled"`
	MicLED         int `yaml:"micled" mapstructure:"micled" json:"micled"`
	RunningLED     int `yaml:"runningled" mapstructure:"runningled" json:"runningled"`
	ShutdownButton int `yaml:"shutdownbutton" mapstructure:"shutdownbutton" json:"shutdownbutton"`
	FireButton     int `yaml:"firebutton" mapstructure:"firebutton" json:"firebutton"`
}

// DefaultPins is the wiring of the reference build.
func DefaultPins() Pins {
	return Pins{
		Fire:           26,
		FireLED:        5,
		MicLED:         6,
		RunningLED:     13,
		ShutdownButton: 17,
		FireButton:     27,
	}
}

// Outputs returns the output lines in a fixed order.
func (p Pins) Outputs() []int {
	return []int{p.Fire, p.FireLED, p.MicLED, p.RunningLED}
}

// Inputs returns the button lines.
func (p Pins) Inputs() []int {
	return []int{p.ShutdownButton, p.FireButton}
}
