package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/wakefire/wakefire/internal/audio"
	"github.com/wakefire/wakefire/internal/errors"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func openTestSource(t *testing.T, detectors *detectorFactory, recorders *recorderFactory, sink audio.DebugSink) *Source {
	t.Helper()

	s, err := Open(context.Background(), Config{
		Name:        "USB Mic",
		Index:       1,
		NewDetector: detectors.New,
		Recorders:   recorders,
		Sink:        sink,
		Log:         quietLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(s.Stop)
	return s
}

func TestSourceDetectionSetsPending(t *testing.T) {
	t.Parallel()

	detectors := &detectorFactory{}
	recorders := newRecorderFactory()
	s := openTestSource(t, detectors, recorders, nil)

	assert.True(t, s.Alive())
	assert.Equal(t, "USB Mic", s.Name())
	assert.Equal(t, 1, s.Index())
	assert.NotEmpty(t, s.ID())

	rec := recorders.last()
	rec.push(false)
	require.Eventually(t, func() bool { return detectors.all()[0].processed.Load() == 1 }, waitFor, tick)
	_, pending := s.Pending().Peek()
	assert.False(t, pending)

	before := time.Now()
	rec.push(true)
	require.Eventually(t, func() bool {
		_, ok := s.Pending().Peek()
		return ok
	}, waitFor, tick)

	at, ok := s.Pending().Take()
	require.True(t, ok)
	assert.False(t, at.Before(before))
}

func TestSourceReadFailureMarksDead(t *testing.T) {
	t.Parallel()

	recorders := newRecorderFactory()
	s := openTestSource(t, &detectorFactory{}, recorders, nil)

	recorders.last().fail <- errors.NewStd("device unplugged")
	require.Eventually(t, func() bool { return !s.Alive() }, waitFor, tick)
}

func TestSourceDetectorFailureMarksDead(t *testing.T) {
	t.Parallel()

	detectors := &detectorFactory{}
	recorders := newRecorderFactory()
	s := openTestSource(t, detectors, recorders, nil)

	detectors.all()[0].processErr = errors.NewStd("engine fault")
	// processErr is written before the frame is queued; the channel send
	// orders it before the capture goroutine reads it.
	recorders.last().push(false)
	require.Eventually(t, func() bool { return !s.Alive() }, waitFor, tick)
}

func TestOpenFailureReleasesDetector(t *testing.T) {
	t.Parallel()

	detectors := &detectorFactory{}
	recorders := newRecorderFactory()
	recorders.failures[3] = 1

	_, err := Open(context.Background(), Config{
		Name:        "Broken Mic",
		Index:       3,
		NewDetector: detectors.New,
		Recorders:   recorders,
		Log:         quietLogger(),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrSourceInit)
	require.Len(t, detectors.all(), 1)
	assert.Equal(t, int64(1), detectors.all()[0].released.Load())
}

func TestOpenStartFailureReleasesEverything(t *testing.T) {
	t.Parallel()

	detectors := &detectorFactory{}
	recorders := newRecorderFactory()
	recorders.startErr = errors.NewStd("cannot start")

	_, err := Open(context.Background(), Config{
		Name:        "Mic",
		NewDetector: detectors.New,
		Recorders:   recorders,
		Log:         quietLogger(),
	})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategorySourceInit))
	assert.Equal(t, int64(1), recorders.last().released.Load())
	assert.Equal(t, int64(1), detectors.all()[0].released.Load())
}

func TestOpenDetectorFailure(t *testing.T) {
	t.Parallel()

	recorders := newRecorderFactory()
	_, err := Open(context.Background(), Config{
		Name:        "Mic",
		NewDetector: (&detectorFactory{err: errors.NewStd("no license")}).New,
		Recorders:   recorders,
		Log:         quietLogger(),
	})
	require.ErrorIs(t, err, errors.ErrSourceInit)
	assert.Nil(t, recorders.last())
}

func TestStopIsIdempotentAndReleases(t *testing.T) {
	t.Parallel()

	detectors := &detectorFactory{}
	recorders := newRecorderFactory()
	sink := &recordingSink{}
	s := openTestSource(t, detectors, recorders, sink)

	s.Stop()
	s.Stop()

	rec := recorders.last()
	assert.False(t, s.Alive())
	assert.Equal(t, int64(1), rec.stopped.Load())
	assert.Equal(t, int64(1), rec.released.Load())
	assert.Equal(t, int64(1), detectors.all()[0].released.Load())
	assert.Empty(t, sink.all(), "nothing captured, nothing written")
}

func TestStopWritesDebugAudio(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	detectors := &detectorFactory{}
	recorders := newRecorderFactory()
	s := openTestSource(t, detectors, recorders, audio.NewWAVSink(dir))

	rec := recorders.last()
	for range 3 {
		rec.push(false)
	}
	require.Eventually(t, func() bool { return detectors.all()[0].processed.Load() == 3 }, waitFor, tick)
	s.Stop()

	files, err := filepath.Glob(filepath.Join(dir, "USB_Mic_*.wav"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	f, err := os.Open(files[0])
	require.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	assert.Equal(t, uint32(testSampleRate), dec.SampleRate)
	assert.Len(t, buf.Data, 3*testFrameLength)
}

func TestNoDebugCaptureWithoutSink(t *testing.T) {
	t.Parallel()

	detectors := &detectorFactory{}
	recorders := newRecorderFactory()
	s := openTestSource(t, detectors, recorders, nil)

	rec := recorders.last()
	for range 3 {
		rec.push(false)
	}
	require.Eventually(t, func() bool { return detectors.all()[0].processed.Load() == 3 }, waitFor, tick)

	// Join the capture goroutine before inspecting its buffer.
	s.cancel()
	<-s.done
	assert.Empty(t, s.frames, "frames are not buffered without a sink")

	s.Stop()
	assert.Equal(t, int64(1), rec.released.Load())
}
