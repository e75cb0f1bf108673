// Package source runs one wake phrase detection worker per capture device and
// keeps the set of workers in step with the devices present on the host.
package source

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/wakefire/wakefire/internal/audio"
	"github.com/wakefire/wakefire/internal/errors"
	"github.com/wakefire/wakefire/internal/logger"
	"github.com/wakefire/wakefire/internal/observability/metrics"
	"github.com/wakefire/wakefire/internal/trigger"
	"github.com/wakefire/wakefire/internal/wakeword"
)

// Config describes one detection source.
type Config struct {
	Name        string
	Index       int
	NewDetector wakeword.Factory
	Recorders   audio.RecorderFactory
	// Sink receives the captured audio at teardown. Nil disables capture
	// buffering.
	Sink    audio.DebugSink
	Log     logger.Logger
	Metrics *metrics.EngineMetrics
	// Now is the clock used for detection timestamps. Defaults to time.Now.
	Now func() time.Time
}

// Source is a running detection worker bound to one capture device.
type Source struct {
	name       string
	index      int
	id         string
	sampleRate int

	detector wakeword.Detector
	recorder audio.Recorder
	sink     audio.DebugSink
	log      logger.Logger
	metrics  *metrics.EngineMetrics
	now      func() time.Time

	alive   atomic.Bool
	pending trigger.Pending

	// frames is written by the capture goroutine only and read after it
	// has exited.
	frames [][]int16

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// Open creates the detector and recorder for the device, starts capture and
// returns the running source. On failure everything created so far is
// released and a source-init error is returned.
func Open(ctx context.Context, cfg Config) (*Source, error) {
	log := cfg.Log
	if log == nil {
		log = logger.Global().Module("source")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	s := &Source{
		name:    cfg.Name,
		index:   cfg.Index,
		id:      uuid.NewString(),
		sink:    cfg.Sink,
		metrics: cfg.Metrics,
		now:     now,
	}
	s.log = log.With(
		logger.String("device", s.name),
		logger.Int("index", s.index),
		logger.String("source_id", s.id))

	detector, err := cfg.NewDetector()
	if err != nil {
		cfg.Metrics.SourceFailed(metrics.StageInit)
		return nil, s.initError(err, "create_detector")
	}

	recorder, err := cfg.Recorders.NewRecorder(cfg.Index, detector.FrameLength(), detector.SampleRate())
	if err != nil {
		s.releaseQuietly(detector, nil)
		cfg.Metrics.SourceFailed(metrics.StageInit)
		return nil, s.initError(err, "create_recorder")
	}

	if err := recorder.Start(); err != nil {
		s.releaseQuietly(detector, recorder)
		cfg.Metrics.SourceFailed(metrics.StageInit)
		return nil, s.initError(err, "start_recorder")
	}

	s.detector = detector
	s.recorder = recorder
	s.sampleRate = detector.SampleRate()

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.alive.Store(true)

	go s.capture(loopCtx)

	s.log.Info("detection source started",
		logger.Int("frame_length", detector.FrameLength()),
		logger.Int("sample_rate", s.sampleRate))
	return s, nil
}

func (s *Source) initError(err error, op string) error {
	return errors.New(err).
		Component("source").
		Category(errors.CategorySourceInit).
		Context("device", s.name).
		Context("index", s.index).
		Context("operation", op).
		Build()
}

// Name returns the device name, which is the registry key.
func (s *Source) Name() string { return s.name }

// Index returns the device index at creation time.
func (s *Source) Index() int { return s.index }

// ID returns the random instance identifier of this source.
func (s *Source) ID() string { return s.id }

// Alive reports whether the capture loop is still running normally.
func (s *Source) Alive() bool { return s.alive.Load() }

// Pending exposes the detection request pair consumed by the coordinator.
func (s *Source) Pending() *trigger.Pending { return &s.pending }

func (s *Source) capture(ctx context.Context) {
	defer close(s.done)

	for {
		frame, err := s.recorder.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.fail(err, "read")
			return
		}

		if s.sink != nil {
			s.frames = append(s.frames, frame)
		}

		idx, err := s.detector.Process(frame)
		if err != nil {
			s.fail(err, "process")
			return
		}
		if idx >= 0 {
			s.pending.Set(s.now())
			s.metrics.Detection(s.name)
			s.log.Info("wake phrase detected", logger.Int("keyword_index", idx))
		}
	}
}

func (s *Source) fail(err error, op string) {
	s.alive.Store(false)
	s.metrics.SourceFailed(metrics.StageCapture)
	captureErr := errors.New(err).
		Component("source").
		Category(errors.CategorySourceCapture).
		Context("device", s.name).
		Context("operation", op).
		Build()
	s.log.Warn("capture stopped", logger.Error(captureErr))
}

// Stop tears the source down: the capture goroutine is cancelled and joined,
// recorder and detector are released and, with a debug sink, the captured
// audio is written. It is safe to call more than once.
func (s *Source) Stop() {
	s.stopOnce.Do(s.teardown)
}

func (s *Source) teardown() {
	s.cancel()
	if err := s.recorder.Stop(); err != nil {
		s.log.Debug("recorder stop failed", logger.Error(err))
	}
	<-s.done
	s.alive.Store(false)

	s.releaseQuietly(s.detector, s.recorder)

	if s.sink != nil && len(s.frames) > 0 {
		path, err := s.sink.Write(s.name, s.sampleRate, s.frames)
		if err != nil {
			s.log.Warn("debug audio not written", logger.Error(err))
		} else {
			s.metrics.DebugFileWritten()
			s.log.Info("debug audio written",
				logger.String("path", path),
				logger.Int("frames", len(s.frames)))
		}
	}
	s.frames = nil
	s.log.Info("detection source stopped")
}

// releaseQuietly releases whatever was created. Release failures are logged
// at debug level and never returned.
func (s *Source) releaseQuietly(detector wakeword.Detector, recorder audio.Recorder) {
	if recorder != nil {
		if err := recorder.Release(); err != nil {
			s.log.Debug("recorder release failed", logger.Error(releaseError(err, s.name, "recorder")))
		}
	}
	if detector != nil {
		if err := detector.Release(); err != nil {
			s.log.Debug("detector release failed", logger.Error(releaseError(err, s.name, "detector")))
		}
	}
}

func releaseError(err error, device, resource string) error {
	return errors.New(err).
		Component("source").
		Category(errors.CategoryResourceRelease).
		Context("device", device).
		Context("resource", resource).
		Build()
}
