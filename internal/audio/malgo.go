package audio

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/wakefire/wakefire/internal/errors"
	"github.com/wakefire/wakefire/internal/logger"
)

const (
	captureChannels = 1
	// frameQueueDepth is the number of assembled frames buffered between the
	// device callback and Read. Older frames are dropped when it is full.
	frameQueueDepth = 32
)

// ErrBackendClosed is returned by device queries after Close.
var ErrBackendClosed = errors.NewStd("audio backend closed")

// Backend owns the miniaudio context shared by device listing and every
// recorder it opens.
type Backend struct {
	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	log    logger.Logger
	closed bool
}

// NewBackend initialises a miniaudio context. On Linux ALSA is used
// directly; elsewhere miniaudio picks the platform default.
func NewBackend(log logger.Logger) (*Backend, error) {
	if log == nil {
		log = logger.Global().Module("audio")
	}

	var backends []malgo.Backend
	if runtime.GOOS == "linux" {
		backends = []malgo.Backend{malgo.BackendAlsa}
	}

	ctx, err := malgo.InitContext(backends, malgo.ContextConfig{}, func(message string) {
		log.Trace("miniaudio", logger.String("message", message))
	})
	if err != nil {
		return nil, errors.New(err).
			Component("audio").
			Category(errors.CategorySystem).
			Context("operation", "init_context").
			Build()
	}

	return &Backend{ctx: ctx, log: log}, nil
}

// ListDevices returns the names of the capture devices, index-aligned with
// the identifiers NewRecorder accepts.
func (b *Backend) ListDevices() ([]string, error) {
	infos, err := b.captureDevices()
	if err != nil {
		return nil, err
	}

	names := make([]string, len(infos))
	for i := range infos {
		names[i] = infos[i].Name()
	}
	return names, nil
}

func (b *Backend) captureDevices() ([]malgo.DeviceInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, errors.New(ErrBackendClosed).
			Component("audio").
			Category(errors.CategoryDiscovery).
			Build()
	}

	infos, err := b.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, errors.New(err).
			Component("audio").
			Category(errors.CategoryDiscovery).
			Context("operation", "list_capture_devices").
			Build()
	}
	return infos, nil
}

// NewRecorder opens the capture device at index as 16-bit mono PCM at
// sampleRate, delivering frames of frameLength samples.
func (b *Backend) NewRecorder(index, frameLength, sampleRate int) (Recorder, error) {
	if frameLength <= 0 || sampleRate <= 0 {
		return nil, errors.Newf("invalid frame length %d or sample rate %d", frameLength, sampleRate).
			Component("audio").
			Category(errors.CategoryValidation).
			Build()
	}

	infos, err := b.captureDevices()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(infos) {
		return nil, errors.Newf("capture device index %d out of range (%d devices)", index, len(infos)).
			Component("audio").
			Category(errors.CategoryNotFound).
			Context("index", index).
			Build()
	}

	r := &malgoRecorder{
		name:     infos[index].Name(),
		deviceID: infos[index].ID,
		frames:   make(chan []int16, frameQueueDepth),
		lost:     make(chan struct{}),
		log:      b.log.With(logger.String("device", infos[index].Name())),
	}
	assembler := newFrameAssembler(frameLength)

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = captureChannels
	cfg.Capture.DeviceID = r.deviceID.Pointer()
	cfg.SampleRate = uint32(sampleRate)
	cfg.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			assembler.push(input, r.deliver)
		},
		Stop: r.markLost,
	}

	b.mu.Lock()
	device, err := malgo.InitDevice(b.ctx.Context, cfg, callbacks)
	b.mu.Unlock()
	if err != nil {
		return nil, errors.New(err).
			Component("audio").
			Category(errors.CategorySourceInit).
			Context("device", r.name).
			Context("sample_rate", sampleRate).
			Build()
	}
	r.device = device

	return r, nil
}

// Close releases the miniaudio context. Recorders must be released first.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	err := b.ctx.Uninit()
	b.ctx.Free()
	if err != nil {
		return errors.New(err).
			Component("audio").
			Category(errors.CategoryResourceRelease).
			Context("operation", "uninit_context").
			Build()
	}
	return nil
}

// malgoRecorder is a Recorder on one miniaudio capture device.
type malgoRecorder struct {
	name     string
	deviceID malgo.DeviceID
	device   *malgo.Device
	frames   chan []int16
	lost     chan struct{}
	lostOnce sync.Once
	log      logger.Logger

	mu       sync.Mutex
	started  bool
	released bool
}

func (r *malgoRecorder) deliver(frame []int16) {
	select {
	case r.frames <- frame:
	default:
		// Reader fell behind; drop the oldest frame to keep latency bounded.
		select {
		case <-r.frames:
		default:
		}
		select {
		case r.frames <- frame:
		default:
		}
	}
}

// markLost runs on miniaudio's thread when the device stops, either because
// Stop was called or because the device disappeared.
func (r *malgoRecorder) markLost() {
	r.lostOnce.Do(func() { close(r.lost) })
}

func (r *malgoRecorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.released {
		return errors.Newf("recorder for %q already released", r.name).
			Component("audio").
			Category(errors.CategoryState).
			Build()
	}
	if r.started {
		return nil
	}
	if err := r.device.Start(); err != nil {
		return errors.New(err).
			Component("audio").
			Category(errors.CategorySourceInit).
			Context("device", r.name).
			Context("operation", "start_device").
			Build()
	}
	r.started = true
	r.log.Debug("capture device started")
	return nil
}

func (r *malgoRecorder) Read(ctx context.Context) ([]int16, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case frame := <-r.frames:
		return frame, nil
	case <-r.lost:
		// Drain what the device delivered before it stopped.
		select {
		case frame := <-r.frames:
			return frame, nil
		default:
		}
		return nil, errors.New(fmt.Errorf("capture device %q stopped", r.name)).
			Component("audio").
			Category(errors.CategorySourceCapture).
			Context("device", r.name).
			Build()
	}
}

func (r *malgoRecorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started || r.released {
		r.markLost()
		return nil
	}
	r.started = false
	err := r.device.Stop()
	r.markLost()
	if err != nil {
		return errors.New(err).
			Component("audio").
			Category(errors.CategoryResourceRelease).
			Context("device", r.name).
			Context("operation", "stop_device").
			Build()
	}
	return nil
}

func (r *malgoRecorder) Release() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.released {
		return nil
	}
	r.released = true
	r.device.Uninit()
	r.markLost()
	return nil
}
