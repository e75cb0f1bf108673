package source

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/wakefire/wakefire/internal/audio"
	"github.com/wakefire/wakefire/internal/errors"
	"github.com/wakefire/wakefire/internal/logger"
	"github.com/wakefire/wakefire/internal/wakeword"
)

const (
	testFrameLength = 512
	testSampleRate  = 16000
	// detectMarker in the first sample of a frame makes fakeDetector report
	// keyword 0.
	detectMarker = 1
)

func quietLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)
}

type fakeDetector struct {
	processed  atomic.Int64
	released   atomic.Int64
	processErr error
}

func (d *fakeDetector) FrameLength() int { return testFrameLength }
func (d *fakeDetector) SampleRate() int  { return testSampleRate }

func (d *fakeDetector) Process(frame []int16) (int, error) {
	defer d.processed.Add(1)
	if d.processErr != nil {
		return -1, d.processErr
	}
	if len(frame) > 0 && frame[0] == detectMarker {
		return 0, nil
	}
	return -1, nil
}

func (d *fakeDetector) Release() error {
	d.released.Add(1)
	return nil
}

type detectorFactory struct {
	mu        sync.Mutex
	detectors []*fakeDetector
	err       error
}

func (f *detectorFactory) New() (wakeword.Detector, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	d := &fakeDetector{}
	f.detectors = append(f.detectors, d)
	return d, nil
}

func (f *detectorFactory) all() []*fakeDetector {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeDetector(nil), f.detectors...)
}

type fakeRecorder struct {
	index    int
	frames   chan []int16
	fail     chan error
	startErr error

	started  atomic.Int64
	stopped  atomic.Int64
	released atomic.Int64
}

func newFakeRecorder(index int) *fakeRecorder {
	return &fakeRecorder{
		index:  index,
		frames: make(chan []int16, 16),
		fail:   make(chan error, 1),
	}
}

func (r *fakeRecorder) Start() error {
	r.started.Add(1)
	return r.startErr
}

func (r *fakeRecorder) Read(ctx context.Context) ([]int16, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case f := <-r.frames:
		return f, nil
	case err := <-r.fail:
		return nil, err
	}
}

func (r *fakeRecorder) Stop() error {
	r.stopped.Add(1)
	return nil
}

func (r *fakeRecorder) Release() error {
	r.released.Add(1)
	return nil
}

// push queues a frame; marker set makes the detector fire on it.
func (r *fakeRecorder) push(marker bool) {
	frame := make([]int16, testFrameLength)
	if marker {
		frame[0] = detectMarker
	}
	r.frames <- frame
}

type recorderFactory struct {
	mu        sync.Mutex
	recorders []*fakeRecorder
	failures  map[int]int // index -> remaining failures
	startErr  error
}

func newRecorderFactory() *recorderFactory {
	return &recorderFactory{failures: make(map[int]int)}
}

func (f *recorderFactory) NewRecorder(index, frameLength, sampleRate int) (audio.Recorder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failures[index] > 0 {
		f.failures[index]--
		return nil, errors.NewStd("device busy")
	}
	r := newFakeRecorder(index)
	r.startErr = f.startErr
	f.recorders = append(f.recorders, r)
	return r, nil
}

func (f *recorderFactory) last() *fakeRecorder {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.recorders) == 0 {
		return nil
	}
	return f.recorders[len(f.recorders)-1]
}

func (f *recorderFactory) forIndex(index int) []*fakeRecorder {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*fakeRecorder
	for _, r := range f.recorders {
		if r.index == index {
			out = append(out, r)
		}
	}
	return out
}

type fakeLister struct {
	mu    sync.Mutex
	names []string
	err   error
}

func (l *fakeLister) set(names ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.names = names
	l.err = nil
}

func (l *fakeLister) setErr(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.err = err
}

func (l *fakeLister) ListDevices() ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	return append([]string(nil), l.names...), nil
}

type recordingSink struct {
	mu     sync.Mutex
	writes []sinkWrite
}

type sinkWrite struct {
	device     string
	sampleRate int
	frames     [][]int16
}

func (s *recordingSink) Write(device string, sampleRate int, frames [][]int16) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, sinkWrite{device: device, sampleRate: sampleRate, frames: frames})
	return "/dev/null", nil
}

func (s *recordingSink) all() []sinkWrite {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sinkWrite(nil), s.writes...)
}
