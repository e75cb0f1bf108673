package wakeword

import (
	"fmt"
	"sync"

	porcupine "github.com/Picovoice/porcupine/binding/go/v3"

	"github.com/wakefire/wakefire/internal/errors"
)

// ErrDetectorReleased is returned by Process after Release.
var ErrDetectorReleased = errors.NewStd("detector released")

// Config selects the keywords to listen for. Exactly one of Keywords or
// KeywordPaths is used; KeywordPaths wins when both are set.
type Config struct {
	AccessKey    string
	ModelPath    string
	Keywords     []string
	KeywordPaths []string
	Sensitivity  float32
}

// Names returns the phrases the detector will report, index-aligned with
// Process results.
func (c Config) Names() []string {
	if len(c.KeywordPaths) > 0 {
		names := make([]string, len(c.KeywordPaths))
		for i, p := range c.KeywordPaths {
			names[i] = KeywordName(p)
		}
		return names
	}
	return append([]string(nil), c.Keywords...)
}

// Validate checks the configuration without loading the engine.
func (c Config) Validate() error {
	if c.AccessKey == "" {
		return configError("wakeword access key is required")
	}
	if len(c.Keywords) == 0 && len(c.KeywordPaths) == 0 {
		return configError("at least one keyword or keyword path is required")
	}
	if len(c.KeywordPaths) == 0 {
		for _, k := range c.Keywords {
			if !IsBuiltIn(k) {
				return configError(fmt.Sprintf("%q is not a built-in keyword", k))
			}
		}
	}
	if c.Sensitivity < 0 || c.Sensitivity > 1 {
		return configError(fmt.Sprintf("sensitivity %.2f outside [0, 1]", c.Sensitivity))
	}
	return nil
}

func configError(msg string) error {
	return errors.Newf("%s", msg).
		Component("wakeword").
		Category(errors.CategoryConfiguration).
		Build()
}

// NewPorcupineFactory returns a Factory creating Porcupine detectors.
func NewPorcupineFactory(cfg Config) (Factory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return func() (Detector, error) {
		return newPorcupine(cfg)
	}, nil
}

type porcupineDetector struct {
	engine   porcupine.Porcupine
	mu       sync.Mutex
	released bool
}

func newPorcupine(cfg Config) (*porcupineDetector, error) {
	engine := porcupine.Porcupine{
		AccessKey: cfg.AccessKey,
		ModelPath: cfg.ModelPath,
	}

	n := len(cfg.KeywordPaths)
	if n > 0 {
		engine.KeywordPaths = append([]string(nil), cfg.KeywordPaths...)
	} else {
		n = len(cfg.Keywords)
		engine.BuiltInKeywords = make([]porcupine.BuiltInKeyword, n)
		for i, k := range cfg.Keywords {
			engine.BuiltInKeywords[i] = porcupine.BuiltInKeyword(k)
		}
	}

	engine.Sensitivities = make([]float32, n)
	for i := range engine.Sensitivities {
		engine.Sensitivities[i] = cfg.Sensitivity
	}

	if err := engine.Init(); err != nil {
		return nil, errors.New(err).
			Component("wakeword").
			Category(errors.CategorySourceInit).
			Context("keywords", cfg.Names()).
			Build()
	}
	return &porcupineDetector{engine: engine}, nil
}

func (p *porcupineDetector) FrameLength() int { return porcupine.FrameLength }

func (p *porcupineDetector) SampleRate() int { return porcupine.SampleRate }

func (p *porcupineDetector) Process(frame []int16) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.released {
		return -1, errors.New(ErrDetectorReleased).
			Component("wakeword").
			Category(errors.CategoryState).
			Build()
	}
	idx, err := p.engine.Process(frame)
	if err != nil {
		return -1, errors.New(err).
			Component("wakeword").
			Category(errors.CategorySourceCapture).
			Build()
	}
	return idx, nil
}

func (p *porcupineDetector) Release() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.released {
		return nil
	}
	p.released = true
	if err := p.engine.Delete(); err != nil {
		return errors.New(err).
			Component("wakeword").
			Category(errors.CategoryResourceRelease).
			Build()
	}
	return nil
}
